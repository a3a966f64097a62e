package domain

// AudienceKind discriminates notification audiences.
type AudienceKind string

const (
	// AudienceGlobal targets every approved member of a circle.
	AudienceGlobal AudienceKind = "GLOBAL"
	// AudienceAdminsOnly targets the circle admin.
	AudienceAdminsOnly AudienceKind = "ADMINS_ONLY"
	// AudienceUser targets a single user.
	AudienceUser AudienceKind = "USER"
)

// Audience is a closed variant describing who a notification is for.
// It replaces free-form audience maps with an explicit tagged type.
type Audience struct {
	Kind   AudienceKind
	UserID uint // set only when Kind == AudienceUser
}

// GlobalAudience targets all approved circle members.
func GlobalAudience() Audience { return Audience{Kind: AudienceGlobal} }

// AdminAudience targets the circle admin.
func AdminAudience() Audience { return Audience{Kind: AudienceAdminsOnly} }

// UserAudience targets one user.
func UserAudience(userID uint) Audience {
	return Audience{Kind: AudienceUser, UserID: userID}
}
