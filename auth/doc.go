// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credential, passcode, and token utilities.

# Passwords

Passwords are hashed with bcrypt at the default cost:

	hash, err := auth.HashPassword(password)
	err = auth.CheckPassword(hash, password)

Passwords shorter than MinPasswordLength or longer than MaxPasswordLength bytes
are rejected with ErrInvalidPassword.

# One-Time Passcodes

Login is a two-step flow. After the password check a six-digit code is
generated and only its HMAC is stored:

	code, err := auth.GenerateOTP()
	hash := auth.HashOTP(userID, code, secret)

The hash binds the code to the user, so a leaked row cannot be replayed for
another account.

# Bearer Tokens

Verified members receive an HS256 JWT:

	token, expiresAt, err := auth.IssueToken(user, secret, time.Now(), 12*time.Hour)
	claims, err := auth.ParseToken(token, secret)

ParseToken accepts only HS256, requires an expiry, and checks the issuer.
The subject is the member ID.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

Vote origin metadata keeps only a salted hash of the client address:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
