package identity

import "github.com/sardis-payments/sardis/internal/apperrors"

// TransitionInput carries the evidence needed to evaluate a KYA level
// change request.
type TransitionInput struct {
	Current              KYALevel
	Requested            KYALevel
	HasAnchorVerification bool // owner KYC completed
	HasCodeAttestation    bool // valid CodeAttestation with verified code_hash
	CurrentTrustScore     float64
}

// CheckTransition enforces spec.md §4.2's level-transition guards:
// VERIFIED requires an anchor-verification id (owner KYC); ATTESTED
// additionally requires a CodeAttestation with valid code_hash and a
// trust score ≥ 0.7. Downgrades must step exactly one level; revocation
// (target NONE) is always permitted and forces a liveness reset by the
// caller.
func CheckTransition(in TransitionInput) error {
	if in.Requested == KYANone {
		return nil // revocation always permitted
	}
	if in.Requested.Rank() > in.Current.Rank() {
		return checkUpgrade(in)
	}
	if in.Requested.Rank() < in.Current.Rank() {
		if in.Current.Rank()-in.Requested.Rank() != 1 {
			return apperrors.New(apperrors.KindState, "kya_downgrade_must_step_one_level", "KYA downgrades must proceed one level at a time")
		}
	}
	return nil
}

func checkUpgrade(in TransitionInput) error {
	switch in.Requested {
	case KYAVerified:
		if !in.HasAnchorVerification {
			return apperrors.New(apperrors.KindValidation, "kya_verified_requires_anchor_verification", "VERIFIED requires an anchor-verification id (owner KYC)")
		}
	case KYAAttested:
		if !in.HasCodeAttestation {
			return apperrors.New(apperrors.KindValidation, "kya_attested_requires_code_attestation", "ATTESTED requires a valid CodeAttestation")
		}
		if in.CurrentTrustScore < 0.7 {
			return apperrors.New(apperrors.KindValidation, "kya_attested_requires_trust_score", "ATTESTED requires a current trust score >= 0.7")
		}
	}
	return nil
}
