package utils

import (
	"fmt"
	"html"
	"log"
	"net/smtp"
	"os"
	"strings"
	"time"
)

type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func GetEmailConfig() *EmailConfig {
	return &EmailConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

func SendEmail(to, subject, htmlBody string) error {
	config := GetEmailConfig()
	if config.Host == "" || config.Port == "" || config.From == "" {
		return fmt.Errorf("SMTP not configured")
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n",
		config.From, to, subject)
	msg := []byte(headers + htmlBody)

	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	addr := config.Host + ":" + config.Port
	return smtp.SendMail(addr, auth, config.From, []string{to}, msg)
}

func firstName(name string) string {
	if name == "" {
		return "there"
	}
	return html.EscapeString(strings.Split(name, " ")[0])
}

func SendWelcomeEmail(email, name string) {
	go func() {
		subject := "Welcome to TableBook!"
		body := fmt.Sprintf(`<h2>Welcome to TableBook, %s!</h2>
<p>Your account is ready. You can now:</p>
<ul>
<li>Discover restaurants near you</li>
<li>Request a table in a few clicks</li>
<li>Follow your booking requests as restaurants answer them</li>
</ul>
<p>The TableBook Team</p>`, firstName(name))
		if err := SendEmail(email, subject, body); err != nil {
			log.Printf("Failed to send welcome email to %s: %v", email, err)
		}
	}()
}

// BookingSummary is what booking emails need to know, in the restaurant's local time.
type BookingSummary struct {
	RestaurantName string
	ReservedAt     time.Time
	PartySize      int
	Status         string
	Note           string
}

func (b BookingSummary) when() string {
	return b.ReservedAt.Format("Mon 2 Jan 2006 at 15:04")
}

func SendBookingReceived(email, name string, b BookingSummary) {
	go func() {
		subject := fmt.Sprintf("Booking request sent - %s", b.RestaurantName)
		body := fmt.Sprintf(`<h2>We've sent your request</h2>
<p>Hi %s,</p>
<p>Your request for a table for <strong>%d</strong> at <strong>%s</strong> on <strong>%s</strong> is waiting for the restaurant to confirm.</p>
<p>We'll email you as soon as they answer.</p>
<p>The TableBook Team</p>`, firstName(name), b.PartySize, html.EscapeString(b.RestaurantName), b.when())
		if err := SendEmail(email, subject, body); err != nil {
			log.Printf("Failed to send booking confirmation to %s: %v", email, err)
		}
	}()
}

func SendBookingStatusUpdate(email, name string, b BookingSummary) {
	go func() {
		subject := fmt.Sprintf("Your booking at %s is %s", b.RestaurantName, b.Status)
		note := ""
		if b.Note != "" {
			note = fmt.Sprintf("<p>Message from the restaurant: <em>%s</em></p>", html.EscapeString(b.Note))
		}
		body := fmt.Sprintf(`<h2>Booking %s</h2>
<p>Hi %s,</p>
<p>Your booking for <strong>%d</strong> at <strong>%s</strong> on <strong>%s</strong> is now <strong>%s</strong>.</p>
%s
<p>The TableBook Team</p>`, b.Status, firstName(name), b.PartySize, html.EscapeString(b.RestaurantName), b.when(), b.Status, note)
		if err := SendEmail(email, subject, body); err != nil {
			log.Printf("Failed to send booking status email to %s: %v", email, err)
		}
	}()
}
