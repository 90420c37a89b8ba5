package main

import "time"

type Config struct {
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath             string        `env:"BLUGE_FILEPATH,required=true"`
	ImageDir                  string        `env:"IMAGE_DIR,required=true"`
	ImageBaseURL              string        `env:"IMAGE_BASE_URL,default=/media"`
	CensoredWords             string        `env:"CENSORED_WORDS"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	ChannelBufferSize         int           `env:"CHANNEL_BUFFER_SIZE,default=32"`
	AuthTokenDuration         time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
	DebugPort                 int           `env:"DEBUG_PORT"`
}
