package bot

// Control-bot commands.
const (
	CommandStart          = "/start"
	CommandHelp           = "/help"
	CommandPing           = "/ping"
	CommandSetup          = "/setup"
	CommandCancel         = "/cancel"
	CommandDelete         = "/delete"
	CommandToggle         = "/toggle"
	CommandRate           = "/rate"
	CommandGroupNoti      = "/gcnoti"
	CommandDebug          = "/debug"
	CommandApprove        = "/approve"
	CommandUnapprove      = "/unapprove"
	CommandApproveList    = "/approvelist"
	CommandApprovalStatus = "/approval_status"
	CommandPromote        = "/promote"
	CommandDemote         = "/demote"
	CommandAdminList      = "/adminlist"
	CommandStats          = "/stats"
)
