package mtec

import (
	"github.com/levenlabs/go-lflag"

	"github.com/mtecbridge/mtecbridge/pkg/common"
)

// Configured registers the portal flags and returns a Client that is set up
// once lflag.Configure runs. Defaults come from the environment so a .env file
// can carry the credentials.
func Configured() *Client {
	baseURL := lflag.String("mtec-base-url", common.Getenv("MTEC_BASE_URL", DefaultBaseURL), "Base URL of the M-TEC portal API")
	email := lflag.String("mtec-email", common.Getenv("MTEC_EMAIL", ""), "Email address of the M-TEC portal account (empty uses the demo account)")
	password := lflag.String("mtec-password", common.Getenv("MTEC_PASSWORD", ""), "Password of the M-TEC portal account")
	demoAccount := lflag.String("mtec-demo-account", common.Getenv("MTEC_DEMO_ACCOUNT", DefaultDemoAccount), "Demo account used when no email is set")
	timeout := lflag.Duration("mtec-timeout", 0, "Timeout of portal requests (0 uses the default)")
	income := lflag.String("mtec-income", common.Getenv("MTEC_INCOME", DefaultIncome), "Feed-in tariff passed to the overview endpoint")

	c := &Client{}
	lflag.Do(func() {
		c.apply(Options{
			BaseURL:     *baseURL,
			Email:       *email,
			Password:    *password,
			DemoAccount: *demoAccount,
			Timeout:     *timeout,
			Income:      *income,
		})
	})
	return c
}
