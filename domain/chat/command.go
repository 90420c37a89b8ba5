package chat

// SendMessageCommand carries a sender's intent to deliver a message.
// Image holds the raw payload (data URI) before the storage collaborator
// turns it into a durable URL.
type SendMessageCommand struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
}

// Pair identifies the conversation the command belongs to.
func (c SendMessageCommand) Pair() string {
	return PairKey(c.SenderID, c.ReceiverID)
}
