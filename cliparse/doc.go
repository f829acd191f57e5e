// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

LoadEnv reads a .env file if one exists, then ParseFlags returns a Config:

	if err := cliparse.LoadEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: SQL DSN or MongoDB URI (required)
  - DatabaseType: sqlite, postgres or mongo (default: sqlite)
  - MongoDatabase: database name when DatabaseType is mongo (default: unionvote)
  - JWTSecret: HS256 signing secret for bearer tokens (required)
  - OTPSecret: HMAC secret for stored login codes (required)
  - OTPTTL: login code lifetime (default: 5m)
  - TokenTTL: bearer token lifetime (default: 12h)

# Environment Variables

Flags fall back to environment variables:

	PORT           → -p
	DATABASE_URL   → -d
	DATABASE_TYPE  → -t
	MONGO_DATABASE → --mongo-db
	JWT_SECRET     → --jwt-secret
	OTP_SECRET     → --otp-secret
	OTP_TTL        → --otp-ttl
	TOKEN_TTL      → --token-ttl

CLI flags take precedence over environment variables, and variables already
in the environment take precedence over .env.
*/
package cliparse
