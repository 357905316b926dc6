package atypes

type MessageKey string

const (
	SHOW_AD_BLOCK_BANNER MessageKey = "ShowAdBlockBanner"
	HIDE_AD_BLOCK_BANNER MessageKey = "HideAdBlockBanner"
	PAUSE_RESUME_PLAYER  MessageKey = "PauseResumePlayer"
	FORCE_CHANGE_QUALITY MessageKey = "ForceChangeQuality"

	UPDATE_IS_SQUAD_STREAM         MessageKey = "UpdateIsSquadStream"
	UPDATE_CLIENT_VERSION          MessageKey = "UpdateClientVersion"
	UPDATE_CLIENT_SESSION          MessageKey = "UpdateClientSession"
	UPDATE_CLIENT_ID               MessageKey = "UpdateClientId"
	UPDATE_DEVICE_ID               MessageKey = "UpdateDeviceId"
	UPDATE_CLIENT_INTEGRITY_HEADER MessageKey = "UpdateClientIntegrityHeader"
	UPDATE_AUTHORIZATION_HEADER    MessageKey = "UpdateAuthorizationHeader"
)

type Message struct {
	Key   MessageKey `json:"key" mapstructure:"key"`
	Value string     `json:"value,omitempty" mapstructure:"value"`
}
