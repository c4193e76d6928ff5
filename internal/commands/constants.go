package commands

// TelegramCommands contains all commands for the Telegram bot
const (
	// Slash commands
	Start   = "/start"
	Link    = "/link"
	Traffic = "/traffic"
	Delete  = "/delete"
	Servers = "/servers"
	Online  = "/online"

	// User keyboard
	MyKey         = "🔑 My Key"
	MyTraffic     = "📊 Traffic"
	DeleteProfile = "🗑 Delete Profile"

	// Administrator keyboard
	ServerLoad    = "🖥 Servers"
	OnlineClients = "🟢 Online Clients"

	// Confirmation commands
	Confirm = "Confirm"
	Cancel  = "Cancel"
)
