package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const PORT = "35001"

func main() {
	conn, err := grpc.Dial(":"+PORT, grpc.WithInsecure())
	if err != nil {
		log.Fatalf("grpc.Dial err: %v", err)
	}
	defer conn.Close()

	// add some headers
	md := metadata.New(map[string]string{
		"testkey1": "testvalue1",
		"testkey2": "testvalue2",
	})
	ctx := metadata.NewOutgoingContext(context.Background(), md)

	client := healthpb.NewHealthClient(conn)
	for i := 0; i < 1000000; i++ {
		resp, err := client.Check(ctx,
			&healthpb.HealthCheckRequest{Service: "h2replay.demo"})
		if err != nil {
			statusErr, ok := status.FromError(err)
			if ok {
				if statusErr.Code() == codes.DeadlineExceeded {
					log.Fatalln("client.Check err: deadline")
				}
			}

			log.Fatalf("client.Check err: %v", err)
		}

		bt, _ := json.Marshal(resp)
		log.Println("resp:", string(bt))
		time.Sleep(10 * time.Second)
	}
}
