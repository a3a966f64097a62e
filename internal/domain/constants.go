package domain

// Platform roles carried in the resolved identity.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// Circle lifecycle statuses. COMPLETED and CANCELLED are terminal.
// Freeze is an orthogonal overlay flag, not a status: it suspends payouts and
// round advancement without resetting the round cursor.
const (
	CircleRecruiting = "RECRUITING"
	CircleActive     = "ACTIVE"
	CircleCompleted  = "COMPLETED"
	CircleCancelled  = "CANCELLED"
)

// Membership roles within a circle. Exactly one ADMIN per circle at any time.
const (
	MembershipAdmin  = "ADMIN"
	MembershipMember = "MEMBER"
)

// Membership join statuses.
const (
	JoinRequested = "REQUESTED"
	JoinApproved  = "APPROVED"
	JoinRejected  = "REJECTED"
	JoinLeft      = "LEFT"
	JoinRemoved   = "REMOVED"
)

// Contribution statuses per (round, member). LATE is derived at read time from
// the round due date and is never stored.
const (
	ContributionPending   = "PENDING"
	ContributionPaid      = "PAID"
	ContributionConfirmed = "CONFIRMED"
	ContributionLate      = "LATE"
	ContributionVoided    = "VOIDED"
)

// Contribution frequencies.
const (
	FrequencyWeekly   = "WEEKLY"
	FrequencyBiweekly = "BIWEEKLY"
	FrequencyMonthly  = "MONTHLY"
)

// Payout slot preferences, consulted only during initial order assignment.
const (
	PreferenceEarly = "EARLY"
	PreferenceLate  = "LATE"
	PreferenceAny   = "ANY"
)

// Ledger entry types.
const (
	EntryMemberJoined          = "MEMBER_JOINED"
	EntryMemberApproved        = "MEMBER_APPROVED"
	EntryMemberRejected        = "MEMBER_REJECTED"
	EntryMemberLeft            = "MEMBER_LEFT"
	EntryMemberRemoved         = "MEMBER_REMOVED"
	EntryAdminGranted          = "ADMIN_GRANTED"
	EntryAdminRevoked          = "ADMIN_REVOKED"
	EntryRotationAssigned      = "ROTATION_ASSIGNED"
	EntryCapacityAdjusted      = "CAPACITY_ADJUSTED"
	EntryObligationCreated     = "OBLIGATION_CREATED"
	EntryContributionPaid      = "CONTRIBUTION_PAID"
	EntryContributionConfirmed = "CONTRIBUTION_CONFIRMED"
	EntryContributionVoided    = "CONTRIBUTION_VOIDED"
	EntryPayoutIssued          = "PAYOUT_ISSUED"
	EntryRoundAdvanced         = "ROUND_ADVANCED"
	EntryCircleActivated       = "CIRCLE_ACTIVATED"
	EntryCircleCompleted       = "CIRCLE_COMPLETED"
	EntryCircleCancelled       = "CIRCLE_CANCELLED"
	EntryCircleFrozen          = "CIRCLE_FROZEN"
	EntryCircleUnfrozen        = "CIRCLE_UNFROZEN"
	EntryAdminOverride         = "ADMIN_OVERRIDE"
)

// Ledger entry directions.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
	DirectionNone   = "NONE"
)

// Ledger entry statuses. Flipping ACTIVE to VOIDED is the only mutation ever
// applied to a written entry, and it is always paired with a compensating entry.
const (
	EntryActive = "ACTIVE"
	EntryVoided = "VOIDED"
)

// Actor types on ledger entries.
const (
	ActorMember = "MEMBER"
	ActorAdmin  = "ADMIN"
	ActorSystem = "SYSTEM"
)

// Notification types.
const (
	NotifJoinRequested      = "JOIN_REQUESTED"
	NotifMemberApproved     = "MEMBER_APPROVED"
	NotifMemberRemoved      = "MEMBER_REMOVED"
	NotifContributionPaid   = "CONTRIBUTION_PAID"
	NotifContributionVoided = "CONTRIBUTION_VOIDED"
	NotifContributionLate   = "CONTRIBUTION_LATE"
	NotifPayoutIssued       = "PAYOUT_ISSUED"
	NotifRoundAdvanced      = "ROUND_ADVANCED"
	NotifCircleFrozen       = "CIRCLE_FROZEN"
)

// DefaultCurrency is used when a circle does not specify one.
const DefaultCurrency = "KES"

// ValidFrequency reports whether f is a supported contribution frequency.
func ValidFrequency(f string) bool {
	return f == FrequencyWeekly || f == FrequencyBiweekly || f == FrequencyMonthly
}

// ValidPreference reports whether p is a supported payout preference.
func ValidPreference(p string) bool {
	return p == PreferenceEarly || p == PreferenceLate || p == PreferenceAny
}
