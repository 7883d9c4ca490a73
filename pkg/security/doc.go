/*
Package security seals secrets that Burrow keeps at rest.

The lab endpoint stores license keys assigned to its clusters. They are
sealed with AES-256-GCM before they reach the Bolt store and opened only
when read back through the lab API.

	sealer, err := security.NewSealerFromPassphrase(os.Getenv("BURROW_LAB_SECRET"))
	sealed, err := sealer.Seal([]byte(licenseKey))
	plain, err := sealer.Open(sealed)

Each Seal call draws a fresh random nonce, so sealing the same key twice
yields different bytes.
*/
package security
