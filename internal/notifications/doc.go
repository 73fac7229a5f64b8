// Package notifications delivers job outcomes via ntfy.
//
// The ntfy service posts to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Notifier listens to workflow
// events and publishes the terminal ones enabled in the notifications
// section.
package notifications
