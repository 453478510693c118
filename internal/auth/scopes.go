package auth

// Known OAuth scopes used by the club activity backend.
const (
	ScopeActivitiesManage   = "activities:manage"
	ScopeActivitiesRegister = "activities:register"
	ScopeNotificationsRead  = "notifications:read"
)
