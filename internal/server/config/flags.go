package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/flagx"
)

var serverFlags = []string{
	"-a", "-grpc", "-d", "-s", "-t", "-r",
	"-m", "-smtp-host", "-smtp-port", "-smtp-user", "-smtp-password", "-mail-from", "-reset-url",
	"-u", "-p", "-b", "-g", "-e", "-log-format",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string              HTTP bind address (e.g., ":8080")
//	-grpc string           gRPC health bind address, empty disables it
//	-d string              PostgreSQL DSN, or "memory"
//	-s string              JWT HMAC secret key
//	-t int                 access token validity, minutes
//	-r int                 refresh token validity, minutes
//	-m string              mail transport: log, smtp or s3
//	-smtp-host string      SMTP server host
//	-smtp-port int         SMTP server port
//	-smtp-user string      SMTP auth user
//	-smtp-password string  SMTP auth password
//	-mail-from string      sender address of outgoing mail
//	-reset-url string      base URL of password recovery links
//	-u string              S3 root user
//	-p string              S3 root password
//	-b string              S3 outbox bucket name
//	-g string              S3 region
//	-e string              S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-log-format string     json or text
//
// os.Args is filtered through flagx.FilterArgs first so flags owned by other
// components (-c/-config) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.MailTransport, "m", config.MailTransport, "mail transport (log, smtp, s3)")
	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "smtp-user", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.MailFrom, "mail-from", config.MailFrom, "sender address")
	fs.StringVar(&config.PasswordResetURL, "reset-url", config.PasswordResetURL, "password reset link base URL")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 outbox bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json or text)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
