package telegram

import "gopkg.in/telebot.v3"

var (
	btnBacktestSummary     = telebot.Btn{Text: "🤖 AI summary", Unique: "btn_backtest_summary"}
	btnDetailJob           = telebot.Btn{Unique: "btn_detail_job"}
	btnActionRunJob        = telebot.Btn{Text: "▶️ Run now", Unique: "btn_action_run_job"}
	btnActionBackToJobList = telebot.Btn{Text: "⬅️ Back", Unique: "btn_action_back_to_job_list"}
	btnDeleteMessage       = telebot.Btn{Text: "🗑 Close", Unique: "btn_delete_message"}
)

const (
	commonErrorInternal = "Something went wrong on our side, please try again."

	// UserLastBacktestKey holds the last /backtest request of a user so the
	// summary button can replay it.
	UserLastBacktestKey = "telegram_last_backtest:%d"
)
