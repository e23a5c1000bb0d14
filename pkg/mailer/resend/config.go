package resend

// Config holds Resend provider configuration.
type Config struct {
	APIKey        string `env:"RESEND_API_KEY"`
	SenderEmail   string `env:"RESEND_FROM_EMAIL"`
	SenderName    string `env:"RESEND_FROM_NAME"`
	WebhookSecret string `env:"RESEND_WEBHOOK_SECRET"`
	BaseURL       string `env:"RESEND_BASE_URL"`
}
