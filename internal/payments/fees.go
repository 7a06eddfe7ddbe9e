package payments

// DefaultPlatformFeeBps is the platform's cut of a connected payment when
// no per-call fee is configured: 500 basis points = 5%.
const DefaultPlatformFeeBps = 500

// Split divides a gross payment amount (minor currency units) into the
// platform fee and the merchant payout. The fee is expressed in basis
// points so common fractional percentages stay exact-integer; rounding is
// half-up on the single gross amount, never accumulated per line item.
// merchant = gross - fee always holds, so no cent is created or lost.
func Split(grossCents int64, feeBps int) (platformFee, merchant int64) {
	if grossCents <= 0 || feeBps <= 0 {
		return 0, grossCents
	}
	if feeBps >= 10000 {
		return grossCents, 0
	}
	platformFee = (grossCents*int64(feeBps) + 5000) / 10000
	return platformFee, grossCents - platformFee
}
