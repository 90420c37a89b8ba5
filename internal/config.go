package internal

// Config covers the read-only tooling (viewer) that only needs the
// database location and the inspect port.
type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,default=9090"`
}
