package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer sends claim-campaign outreach email over SMTP.
type Mailer struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	BaseURL   string
}

func NewMailer(host string, port int, username, password, fromEmail, fromName, baseURL string) *Mailer {
	return &Mailer{
		Host:      host,
		Port:      port,
		Username:  username,
		Password:  password,
		FromEmail: fromEmail,
		FromName:  fromName,
		BaseURL:   baseURL,
	}
}

// Configured reports whether SMTP delivery is available. Outreach is skipped
// (not failed) when it is not.
func (m *Mailer) Configured() bool {
	return m != nil && m.Host != ""
}

type claimInviteData struct {
	BusinessName string
	City         string
	ClaimURL     string
	PixelURL     string
	ExpiresAt    string
	Year         int
}

// Embedded email templates
var claimInviteTemplate = template.Must(template.New("claim_invite").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Claim your business listing</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 12px 24px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Is {{.BusinessName}} your business?</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>{{.BusinessName}}{{if .City}} in {{.City}}{{end}} is listed on ProQuote,
        where local customers request project quotes. Take ownership of your free
        listing to respond to quote requests and manage your profile.</p>

        <p style="text-align:center;margin:30px 0;">
            <a class="button" href="{{.ClaimURL}}">Claim my listing</a>
        </p>

        <p>This link is unique to your business and expires on {{.ExpiresAt}}.</p>
    </div>

    <div class="footer">
        <p>If this isn't your business, you can safely ignore this email.</p>
        <p>&copy; {{.Year}} ProQuote. All rights reserved.</p>
    </div>
    <img src="{{.PixelURL}}" alt="" width="1" height="1" style="display:none">
</body>
</html>`))

// SendClaimInvitation delivers the outreach email for a campaign token to one
// recipient. The claim link is click-tracked and the body carries an open
// pixel.
func (m *Mailer) SendClaimInvitation(to, businessName, city, token string, expiresAt time.Time) error {
	if !m.Configured() {
		return fmt.Errorf("smtp is not configured")
	}

	claimURL := GenerateClaimURL(m.BaseURL, token)
	data := claimInviteData{
		BusinessName: businessName,
		City:         city,
		ClaimURL:     GenerateClickTrackURL(m.BaseURL, token, claimURL),
		PixelURL:     GenerateOpenPixelURL(m.BaseURL, token),
		ExpiresAt:    expiresAt.Format("January 2, 2006"),
		Year:         time.Now().Year(),
	}

	var body bytes.Buffer
	if err := claimInviteTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render claim invitation: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.FromEmail, m.FromName))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Claim your %s listing on ProQuote", businessName))
	msg.SetBody("text/html", body.String())

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send claim invitation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"to":       to,
		"business": businessName,
		"token":    token,
	}).Info("claim invitation sent")

	return nil
}
