package tool

// MessageSummary contains the listing fields of a message.
type MessageSummary struct {
	UID     uint32   `json:"uid"`
	Date    string   `json:"date"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Flags   []string `json:"flags"`
}

// SearchResult is a MessageSummary without flags.
type SearchResult struct {
	UID     uint32 `json:"uid"`
	Date    string `json:"date"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// Attachment represents attachment metadata.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// MessageDetail contains a fully decoded message.
type MessageDetail struct {
	UID         uint32       `json:"uid"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Cc          string       `json:"cc"`
	Subject     string       `json:"subject"`
	Date        string       `json:"date"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
}

// DraftDetail is a MessageDetail without attachments.
type DraftDetail struct {
	UID     uint32 `json:"uid"`
	From    string `json:"from"`
	To      string `json:"to"`
	Cc      string `json:"cc"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// DraftList is the result of list_drafts.
type DraftList struct {
	Folder string           `json:"folder"`
	Drafts []MessageSummary `json:"drafts"`
}

// SendResult is the result of send_email.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Response  string `json:"response"`
}
