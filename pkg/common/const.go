package common

const (
	KEY_BACKTEST_RESULT = "backtest_result:%s"
)

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)
