package server

import (
	"encoding/hex"
	"os"
	"path/filepath"
)

// handleFileUpload decodes an inline hex payload, persists it under the
// configured directory (same-name uploads overwrite) and notifies the
// sender's room members that opted in to file notifications. The sender
// gets a single terminal progress acknowledgment on success.
func (cs *ChatServer) handleFileUpload(c *Client, msg *ClientMessage) {
	if msg.Filename == "" {
		c.queueMessage(NewFileError("missing filename"))
		return
	}
	filename := filepath.Base(msg.Filename)

	data, err := hex.DecodeString(msg.Content)
	if err != nil {
		c.queueMessage(NewFileError("decode file content: " + err.Error()))
		return
	}

	if err := os.MkdirAll(cs.filesDir, 0o755); err != nil {
		c.queueMessage(NewFileError("create files directory: " + err.Error()))
		return
	}
	if err := os.WriteFile(filepath.Join(cs.filesDir, filename), data, 0o644); err != nil {
		c.queueMessage(NewFileError("write file: " + err.Error()))
		return
	}

	cs.mu.Lock()
	roomId := cs.userRoom[c.username]
	shared := NewFileShared(c.username, filename, len(data), roomId)
	for _, mc := range cs.roomMemberClientsLocked(roomId) {
		if cs.receiveFilesLocked(mc.username) {
			mc.queueMessage(shared)
		}
	}
	cs.mu.Unlock()

	cs.stats.Incr("FilesShared")
	cs.log.Printf("%q shared file %q (%d bytes)", c.username, filename, len(data))

	c.queueMessage(NewFileProgress(100))
}
