package errors

import "fmt"

var (
	ErrEmptyMessage       = fmt.Errorf("message needs a text or an image")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrNotAnImage         = fmt.Errorf("payload is not an image")
	ErrChannelClosed      = fmt.Errorf("live channel is closed")
	ErrChannelSaturated   = fmt.Errorf("live channel buffer is full")
)
