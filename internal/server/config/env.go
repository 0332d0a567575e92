package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotenv is a seam for tests. Missing .env files are not an error.
var loadDotenv = func() { _ = godotenv.Load() }

// parseEnv overlays environment variables, after loading a .env file from
// the working directory when one exists. Unset variables keep the current
// value and a variable set to an empty string clears a string field, so
// GRPC_ADDRESS= disables gRPC. Malformed numbers and durations panic like
// bad flags do.
func parseEnv(config *Config) {
	loadDotenv()

	envString(&config.EndpointAddrHTTP, "HTTP_ADDRESS")
	envString(&config.EndpointAddrGRPC, "GRPC_ADDRESS")
	envString(&config.DatabaseDSN, "DATABASE_URL")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")
	envString(&config.MailTransport, "MAIL_TRANSPORT")
	envString(&config.SMTPHost, "SMTP_HOST")
	envInt(&config.SMTPPort, "SMTP_PORT")
	envString(&config.SMTPUser, "SMTP_USER")
	envString(&config.SMTPPassword, "SMTP_PASSWORD")
	envString(&config.MailFrom, "MAIL_FROM")
	envString(&config.PasswordResetURL, "PASSWORD_RESET_URL")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.LogFormat, "LOG_FORMAT")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
