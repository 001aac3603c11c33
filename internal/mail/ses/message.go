package ses

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

const base64LineLength = 76

// Message is one outgoing HTML e-mail with optional attachments.
type Message struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Date        time.Time
	Attachments []ports.Attachment
}

// Bytes renders the message as raw RFC 5322 / MIME bytes.
func (m Message) Bytes() ([]byte, error) {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	if strings.TrimSpace(m.HTML) == "" {
		return nil, errors.New("message body is empty")
	}

	var buf bytes.Buffer
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	writeHeader(&buf, "From", from.String())
	writeHeader(&buf, "To", to.String())
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")

	kind := "alternative"
	if len(m.Attachments) > 0 {
		kind = "mixed"
	}
	writer := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", fmt.Sprintf("multipart/%s; boundary=%q", kind, writer.Boundary()))
	buf.WriteString("\r\n")

	if err := writeHTMLPart(writer, m.HTML); err != nil {
		return nil, err
	}
	for _, attachment := range m.Attachments {
		if err := writeAttachment(writer, attachment); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeHTMLPart(writer *multipart.Writer, html string) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "text/html; charset=UTF-8")
	header.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	encoder := quotedprintable.NewWriter(part)
	if _, err := encoder.Write([]byte(html)); err != nil {
		return err
	}
	return encoder.Close()
}

func writeAttachment(writer *multipart.Writer, attachment ports.Attachment) error {
	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := attachment.Filename
	if filename == "" {
		filename = "statement.pdf"
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", mime.FormatMediaType(contentType, map[string]string{"name": filename}))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	header.Set("Content-Transfer-Encoding", "base64")
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(attachment.Data)
	for len(encoded) > base64LineLength {
		if _, err := part.Write([]byte(encoded[:base64LineLength] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[base64LineLength:]
	}
	_, err = part.Write([]byte(encoded + "\r\n"))
	return err
}
