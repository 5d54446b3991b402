package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tmchat/tmchat/internal/types"
)

// bannedWord is one moderation pattern. Patterns are matched
// case-insensitively against outgoing content; an input that is not a valid
// regular expression degrades to a literal substring match.
type bannedWord struct {
	word string
	re   *regexp.Regexp
}

func compileBannedWord(word string) bannedWord {
	re, err := regexp.Compile("(?i)" + word)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(word))
	}
	return bannedWord{word: word, re: re}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// verifyOwnerLocked checks the supplied password against the configured
// hash. The client may send a plaintext password or, with is_hashed, a
// remembered digest. Success overwrites any previous owner.
func (cs *ChatServer) verifyOwnerLocked(c *Client, msg *ClientMessage) {
	candidate := msg.Password
	if !msg.IsHashed {
		candidate = hashPassword(msg.Password)
	}

	if cs.ownerHash == "" || !strings.EqualFold(candidate, cs.ownerHash) {
		c.queueMessage(NewOwnerVerified(false, "incorrect password"))
		return
	}

	cs.owner = c.username
	cs.log.Printf("%q verified as owner", c.username)
	c.queueMessage(NewOwnerVerified(true, ""))
	cs.broadcastLocked(NewOwnerChanged(cs.owner))
}

func (cs *ChatServer) isMutedLocked(username string) bool {
	_, ok := cs.muted[username]
	return ok
}

func (cs *ChatServer) matchesBannedLocked(content string) bool {
	for _, bw := range cs.banned {
		if bw.re.MatchString(content) {
			return true
		}
	}
	return false
}

func (cs *ChatServer) muteUserLocked(c *Client, target string, mute bool) {
	if mute {
		cs.muted[target] = struct{}{}
		cs.broadcastLocked(NewSystemMessage(fmt.Sprintf("%s was muted by the owner", target)))
	} else {
		delete(cs.muted, target)
		cs.broadcastLocked(NewSystemMessage(fmt.Sprintf("%s was unmuted by the owner", target)))
	}
}

func (cs *ChatServer) addBannedWordLocked(c *Client, word string) {
	for _, bw := range cs.banned {
		if strings.EqualFold(bw.word, word) {
			c.queueMessage(NewBannedWordUpdated(true, fmt.Sprintf("banned word %q already exists", word)))
			return
		}
	}

	cs.banned = append(cs.banned, compileBannedWord(word))
	c.queueMessage(NewBannedWordUpdated(true, fmt.Sprintf("added banned word %q", word)))
}

func (cs *ChatServer) removeBannedWordLocked(c *Client, word string) {
	for i, bw := range cs.banned {
		if strings.EqualFold(bw.word, word) {
			cs.banned = slices.Delete(cs.banned, i, i+1)
			c.queueMessage(NewBannedWordUpdated(true, fmt.Sprintf("removed banned word %q", word)))
			return
		}
	}

	c.queueMessage(NewBannedWordUpdated(false, fmt.Sprintf("banned word %q not found", word)))
}

// kickUserLocked force-disconnects the target's earliest-registered
// connection. A target with no live connection is a no-op.
func (cs *ChatServer) kickUserLocked(c *Client, target string) {
	tc := cs.findClientLocked(target)
	if tc == nil {
		return
	}

	tc.queueMessage(NewKicked("You were kicked from the chat by the owner"))
	cs.unregisterLocked(tc)
	// the write pump flushes the kicked notice before closing the connection
	tc.stopClient()

	cs.kicked = append(cs.kicked, types.KickRecord{
		Id:        uuid.NewString(),
		Username:  target,
		KickedBy:  c.username,
		Timestamp: cs.now(),
		Reason:    "kicked by room owner",
	})

	cs.log.Printf("%q kicked %q", c.username, target)
	cs.broadcastLocked(NewSystemMessage(fmt.Sprintf("%s was kicked from the chat", target)))
}

func (cs *ChatServer) bannedWordsLocked() []string {
	words := make([]string, len(cs.banned))
	for i, bw := range cs.banned {
		words[i] = bw.word
	}
	return words
}

func (cs *ChatServer) mutedUsersLocked() []string {
	return slices.Sorted(maps.Keys(cs.muted))
}
