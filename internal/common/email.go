package common

// EmailSender delivers booking notification emails. The production sender is
// swapped for NopEmailSender until an outbound mail integration lands.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is one captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail collects messages instead of sending them, for tests.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards every message.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }
