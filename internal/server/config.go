package server

type HttpConfig struct {
	// Host is the interface to listen on
	Host string `conf:"host"`

	// Port is the port to listen on, 0 picks a free port
	Port int `conf:"port"`

	// H2c enables HTTP/2 without TLS
	H2c bool `conf:"h2c"`
}
