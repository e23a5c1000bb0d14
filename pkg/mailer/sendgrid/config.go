package sendgrid

// DefaultHost is the SendGrid API host.
const DefaultHost = "https://api.sendgrid.com"

// Config holds SendGrid provider configuration.
type Config struct {
	APIKey           string `env:"SENDGRID_API_KEY"`
	SenderEmail      string `env:"SENDGRID_FROM_EMAIL"`
	SenderName       string `env:"SENDGRID_FROM_NAME"`
	Host             string `env:"SENDGRID_HOST" envDefault:"https://api.sendgrid.com"`
	WebhookPublicKey string `env:"SENDGRID_WEBHOOK_PUBLIC_KEY"`
}
