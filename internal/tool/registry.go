package tool

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool names.
const (
	ListFolders  = "list_folders"
	ListEmails   = "list_emails"
	GetEmail     = "get_email"
	SearchEmails = "search_emails"
	ListDrafts   = "list_drafts"
	GetDraft     = "get_draft"
	CreateDraft  = "create_draft"
	UpdateDraft  = "update_draft"
	SendEmail    = "send_email"
	DeleteEmail  = "delete_email"
)

const (
	defaultFolder = "INBOX"
	defaultLimit  = 20
)

// Spec describes one operation exposed to the host.
type Spec struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Required    []string
	// Defaults are applied to missing arguments before the handler runs.
	Defaults map[string]any
	// NeedsSession marks operations that run against a mailbox session.
	NeedsSession bool
}

var catalog = []Spec{
	{
		Name:         ListFolders,
		Description:  "List all mail folders as dotted paths",
		NeedsSession: true,
	},
	{
		Name:        ListEmails,
		Description: "List the most recent messages of a folder, newest first",
		Defaults:    map[string]any{"folder": defaultFolder, "limit": defaultLimit},
		Schema: object(map[string]*jsonschema.Schema{
			"folder":      folderProp(),
			"limit":       limitProp(),
			"unseen_only": {Type: "boolean", Description: "only return unread messages"},
			"since_date":  {Type: "string", Description: "only return messages since this date (YYYY-MM-DD or RFC 3339)"},
		}),
		NeedsSession: true,
	},
	{
		Name:        GetEmail,
		Description: "Get the full content of a message by UID",
		Required:    []string{"uid"},
		Defaults:    map[string]any{"folder": defaultFolder},
		Schema: object(map[string]*jsonschema.Schema{
			"folder": folderProp(),
			"uid":    uidProp(),
		}),
		NeedsSession: true,
	},
	{
		Name:        SearchEmails,
		Description: "Search messages by subject, sender and body text",
		Defaults:    map[string]any{"folder": defaultFolder, "limit": defaultLimit},
		Schema: object(map[string]*jsonschema.Schema{
			"folder":  folderProp(),
			"limit":   limitProp(),
			"subject": {Type: "string", Description: "text contained in the subject"},
			"from":    {Type: "string", Description: "text contained in the sender"},
			"body":    {Type: "string", Description: "text contained in the body"},
		}),
		NeedsSession: true,
	},
	{
		Name:        ListDrafts,
		Description: "List the most recent drafts, newest first",
		Defaults:    map[string]any{"limit": defaultLimit},
		Schema: object(map[string]*jsonschema.Schema{
			"limit": limitProp(),
		}),
		NeedsSession: true,
	},
	{
		Name:        GetDraft,
		Description: "Get the content of a draft by UID",
		Required:    []string{"uid"},
		Schema: object(map[string]*jsonschema.Schema{
			"uid": uidProp(),
		}),
		NeedsSession: true,
	},
	{
		Name:         CreateDraft,
		Description:  "Save a new draft in the drafts folder",
		Required:     []string{"to", "subject"},
		Schema:       object(composeProps()),
		NeedsSession: true,
	},
	{
		Name:         UpdateDraft,
		Description:  "Replace an existing draft. The new draft gets a new UID",
		Required:     []string{"uid", "to", "subject"},
		Schema:       object(withUID(composeProps())),
		NeedsSession: true,
	},
	{
		Name:        SendEmail,
		Description: "Send a message through the configured SMTP relay",
		Required:    []string{"to", "subject"},
		Schema:      object(composeProps()),
	},
	{
		Name:        DeleteEmail,
		Description: "Delete a message by UID and expunge the folder",
		Required:    []string{"uid"},
		Defaults:    map[string]any{"folder": defaultFolder},
		Schema: object(map[string]*jsonschema.Schema{
			"folder": folderProp(),
			"uid":    uidProp(),
		}),
		NeedsSession: true,
	},
}

func init() {
	for i := range catalog {
		s := &catalog[i]
		if s.Schema == nil {
			s.Schema = object(nil)
		}
		s.Schema.Required = s.Required
		for key, value := range s.Defaults {
			if prop, ok := s.Schema.Properties[key]; ok {
				prop.Default, _ = json.Marshal(value)
			}
		}
	}
}

// Catalog returns the specs of all operations in registration order.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

func lookup(name string) (Spec, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

func object(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: props}
}

func folderProp() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: "folder name"}
}

func limitProp() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: "maximum number of messages to return"}
}

func uidProp() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: "message UID within the folder"}
}

func composeProps() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"to":      {Type: "string", Description: "comma separated recipients"},
		"cc":      {Type: "string", Description: "comma separated CC recipients"},
		"bcc":     {Type: "string", Description: "comma separated BCC recipients"},
		"subject": {Type: "string", Description: "message subject"},
		"body":    {Type: "string", Description: "plain text body"},
		"html":    {Type: "string", Description: "HTML body"},
	}
}

func withUID(props map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	props["uid"] = &jsonschema.Schema{Type: "integer", Description: "UID of the draft to replace"}
	return props
}
