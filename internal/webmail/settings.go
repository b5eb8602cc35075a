package webmail

import (
	"net/url"

	"github.com/animxo/mailpanel/internal/model"
)

const (
	IMAPPort = 993
	POP3Port = 995
	SMTPPort = 465
)

type IncomingServer struct {
	Server   string `json:"server"`
	IMAPPort int    `json:"imap_port"`
	POP3Port int    `json:"pop3_port"`
	SSL      bool   `json:"ssl"`
}

type OutgoingServer struct {
	Server   string `json:"server"`
	SMTPPort int    `json:"smtp_port"`
	SSL      bool   `json:"ssl"`
}

// ClientSettings is what a desktop or mobile mail client needs.
type ClientSettings struct {
	Incoming       IncomingServer `json:"incoming"`
	Outgoing       OutgoingServer `json:"outgoing"`
	Username       string         `json:"username"`
	Authentication bool           `json:"authentication"`
	WebmailURL     string         `json:"webmail_url"`
}

func Settings(server, webmailBase, address string) ClientSettings {
	return ClientSettings{
		Incoming:       IncomingServer{Server: server, IMAPPort: IMAPPort, POP3Port: POP3Port, SSL: true},
		Outgoing:       OutgoingServer{Server: server, SMTPPort: SMTPPort, SSL: true},
		Username:       address,
		Authentication: true,
		WebmailURL:     WebmailLink(webmailBase, address),
	}
}

// ProtocolSettings returns the IMAP and SMTP endpoints stored on verified
// mailboxes.
func ProtocolSettings(server string) (imap, smtp model.ProtocolSettings) {
	return model.ProtocolSettings{Server: server, Port: IMAPPort, SSL: true},
		model.ProtocolSettings{Server: server, Port: SMTPPort, SSL: true}
}

// WebmailLink pre-fills the login form of the webmail client.
func WebmailLink(base, address string) string {
	return base + "/?login=" + url.QueryEscape(address)
}
