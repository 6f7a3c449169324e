// Package fcm sends push notifications through the FCM HTTP v1 API.
package fcm

// Notification is the user-visible part of a push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type payload struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}
