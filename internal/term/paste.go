package term

const (
	pasteStartSeq = "\x1b[200~"
	pasteEndSeq   = "\x1b[201~"
)

// EncodePasteToBytes returns the bytes to send for pasted text, wrapped in
// bracketed-paste markers when the child enabled that mode.
func EncodePasteToBytes(content string, bracketed bool) []byte {
	if content == "" {
		return nil
	}
	if !bracketed {
		return []byte(content)
	}
	out := make([]byte, 0, len(content)+len(pasteStartSeq)+len(pasteEndSeq))
	out = append(out, pasteStartSeq...)
	out = append(out, content...)
	out = append(out, pasteEndSeq...)
	return out
}
