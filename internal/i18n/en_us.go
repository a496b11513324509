package i18n

// Template ids referenced by the command pipeline. Other locales must define
// the same set of ids.
const (
	MsgAuthenticationFailed   = "errorAuthentication"
	MsgAuthenticationRequired = "errorAuthenticationRequired"
	MsgBanned                 = "errorBanned"
	MsgEmailAlreadyExists     = "errorEmailAlreadyExists"
	MsgEmailLast              = "errorEmailLast"
	MsgEmailNonexistent       = "errorEmailNonexistent"
	MsgEmailVerificationBad   = "errorEmailVerificationFailed"
	MsgMailSystemFailure      = "errorMailSystem"
	MsgOperationNotPermitted  = "errorOperationNotPermitted"
	MsgParameterInvalid       = "errorParameterInvalid"
	MsgPasswordConfirmation   = "errorPasswordConfirmation"
	MsgPasswordTooShort       = "errorPasswordTooShort"
	MsgProtocolError          = "errorProtocol"
	MsgRateLimited            = "errorRateLimited"
	MsgSQLFailure             = "errorSql"
	MsgUserNonexistent        = "errorUserNonexistent"
	MsgAdminNonexistent       = "errorAdminNonexistent"
	MsgPasswordResetFailed    = "errorPasswordResetFailed"

	MsgNoticeEmailAdded   = "noticeEmailAdded"
	MsgNoticeEmailRemoved = "noticeEmailRemoved"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[string]string{
		MsgAuthenticationFailed:   "Authentication failed: the user name or password is incorrect",
		MsgAuthenticationRequired: "Authentication is required for this operation",
		MsgBanned:                 "This account is banned: {{.Reason}}",
		MsgEmailAlreadyExists:     "The email address {{.Email}} is already in use",
		MsgEmailLast:              "The last email address on an account cannot be removed",
		MsgEmailNonexistent:       "The email address {{.Email}} is not associated with this account",
		MsgEmailVerificationBad:   "The email verification token is unknown, expired, or already used",
		MsgMailSystemFailure:      "The mail system failed to deliver a message; try again later",
		MsgOperationNotPermitted:  "The requested operation is not permitted: {{.Reason}}",
		MsgParameterInvalid:       "A request parameter is invalid: {{.Detail}}",
		MsgPasswordConfirmation:   "The password and password confirmation do not match",
		MsgPasswordTooShort:       "Passwords must be at least {{.Minimum}} characters",
		MsgProtocolError:          "The command could not be understood: {{.Detail}}",
		MsgRateLimited:            "Too many attempts; wait before trying again",
		MsgSQLFailure:             "A database error occurred; try again later",
		MsgUserNonexistent:        "No such user exists",
		MsgAdminNonexistent:       "No such administrator exists",
		MsgPasswordResetFailed:    "The password reset token is unknown, expired, or already used",

		MsgNoticeEmailAdded:   "The email address was added to your account",
		MsgNoticeEmailRemoved: "The email address was removed from your account",
	},
}
