package tcnats

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mpapenbr/racesim-engine/testsupport/tccontainer"
)

// Connect returns a connection to the nats test server with JetStream enabled.
// If NATS_TEST_URL is set that server is used instead of a container.
func Connect() *nats.Conn {
	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		addr, err := tccontainer.Start(context.Background(), "nats:2-alpine", "4222",
			tccontainer.WithCmd("-js"),
			tccontainer.WithWaitStrategy(
				wait.ForLog("Server is ready").WithStartupTimeout(10*time.Second)),
			tccontainer.WithName("racesim-engine-nats-test"),
		)
		if err != nil {
			log.Fatal(err)
		}
		url = "nats://" + addr
	}
	conn, err := nats.Connect(url)
	if err != nil {
		log.Fatal(err)
	}
	return conn
}
