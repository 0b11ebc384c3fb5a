package whatsapp

import "context"

// Op names the provider operation a request or error belongs to.
type Op string

const (
	OpUpload   Op = "upload"
	OpTemplate Op = "template"
	OpDocument Op = "document"
)

// UnknownMessageID is returned when the provider accepted a message but did
// not echo an identifier back.
const UnknownMessageID = "?"

// Provider is the outbound WhatsApp Business messaging surface used by the
// broadcast: one media upload, then template and document sends per recipient.
type Provider interface {
	UploadMedia(ctx context.Context, path, mimeType string) (string, error)
	SendTemplate(ctx context.Context, to, name, language string) (string, error)
	SendDocument(ctx context.Context, to string, doc Document) (string, error)
}

// Document references previously uploaded media.
type Document struct {
	MediaID  string
	Caption  string
	Filename string
}

// Cloud API wire types.

type messageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         *templateContent `json:"template,omitempty"`
	Document         *documentContent `json:"document,omitempty"`
}

type templateContent struct {
	Name     string           `json:"name"`
	Language templateLanguage `json:"language"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type documentContent struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type messageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type mediaResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
