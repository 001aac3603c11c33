package ses

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const subjectPrefix = "Bank Statements Available - "

const layoutStyle = `
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
    .content { background-color: #f9f9f9; padding: 20px; border-radius: 5px; margin-top: 20px; }
    .footer { margin-top: 20px; font-size: 12px; color: #666; text-align: center; }
    ul { padding-left: 20px; }
    a { color: #4CAF50; text-decoration: none; font-weight: bold; }`

var bodyTemplate = template.Must(template.New("statements").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`<!DOCTYPE html>
<html>
<head>
  <style>{{ .Style }}</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Bank Statements Ready</h1></div>
    <div class="content">
      <p>Hello,</p>
      {{- if .Links }}
      <p>Your bank statements are now available for download.</p>
      {{- else }}
      <p>Your bank statements are now available for review.</p>
      {{- end }}
      <p><strong>Rep ID:</strong> {{ .RepID }}</p>
      <p><strong>Number of Statements:</strong> {{ .Count }}</p>
      <p><strong>Date:</strong> {{ .Date }}</p>
      {{- if .Links }}
      <p><strong>Download Links:</strong></p>
      <ul>
        {{- range $i, $link := .Links }}
        <li><a href="{{ $link.URL }}">Download Statement {{ inc $i }}</a> (Link expires in {{ $link.Expiry }})</li>
        {{- end }}
      </ul>
      <p><strong>Note:</strong> These links will expire in {{ .LinkExpiry }} for security purposes.</p>
      {{- else }}
      <p>The statements are attached to this email as PDF files.</p>
      <p>If you have any questions, please contact support.</p>
      {{- end }}
    </div>
    <div class="footer"><p>This is an automated message. Please do not reply to this email.</p></div>
  </div>
</body>
</html>
`))

type linkView struct {
	URL    string
	Expiry string
}

type bodyView struct {
	Style      template.CSS
	RepID      string
	Count      int
	Date       string
	Links      []linkView
	LinkExpiry string
}

func subject(day time.Time) string {
	return subjectPrefix + day.Format(time.DateOnly)
}

func renderBody(view bodyView) (string, error) {
	view.Style = template.CSS(layoutStyle)
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render statement email: %w", err)
	}
	return buf.String(), nil
}

// formatExpiry renders a link lifetime the way the e-mail reads it.
func formatExpiry(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
