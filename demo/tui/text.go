package tui

// UI Text Constants
const (
	TextTitle        = "📰 Newsdesk"
	TextDisconnected = "❌ Not connected to newsdesk"
	TextFooter       = "1-7 run a stage | r refresh | q quit"
)
