package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"forkcrawl/pkg/config"
	"forkcrawl/pkg/crawler"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("forkcrawl").Show($toast)
	`, title, message)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// Notifier sends desktop notifications at the end of a run
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWithSender(cfg, sender)
}

// NewNotifierWithSender creates a Notifier around an explicit sender
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, cfg: cfg}
}

// RunFinished notifies about a finished run according to the configured
// preferences. It reports whether a notification was sent.
func (n *Notifier) RunFinished(s crawler.Summary, runErr error) bool {
	if !n.cfg.Enabled || n.sender == nil {
		return false
	}

	failed := runErr != nil || s.Failed > 0
	switch {
	case failed && n.cfg.OnError:
		msg := fmt.Sprintf("%d of %d projects failed", s.Failed, s.Total)
		if len(s.Deferred) > 0 {
			msg += ": " + strings.Join(s.Deferred, ", ")
		}
		if s.Interrupted != "" {
			msg = fmt.Sprintf("interrupted during %s", s.Interrupted)
		}
		return n.send("forkcrawl: crawl incomplete", msg)
	case !failed && n.cfg.OnComplete:
		return n.send("forkcrawl: crawl complete",
			fmt.Sprintf("%d succeeded, %d skipped", s.Succeeded, s.Skipped))
	}
	return false
}

func (n *Notifier) send(title, message string) bool {
	// Desktop notifications are best effort
	return n.sender.Send(title, message) == nil
}
