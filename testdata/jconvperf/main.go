package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/xdg-go/jconv"
	"go.mongodb.org/mongo-driver/bson"
)

// Input is expected to be a JSON array of objects.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: jconvperf <json file>")
	}
	inputFile := os.Args[1]
	jsonData, err := os.ReadFile(inputFile)
	if err != nil {
		log.Fatal(err)
	}
	benchIterate(jsonData)
	benchBSON(jsonData)
	benchStdlib(jsonData)
	benchGoJSON(jsonData)
	benchNaiveBSON(jsonData)
}

func benchIterate(input []byte) {
	reg := jconv.NewRegistry()
	start := time.Now()
	it, err := reg.IterateOver(jconv.TypeFor[map[string]any](), bytes.NewReader(input), make([]byte, 4096))
	if err != nil {
		log.Fatal(err)
	}
	for it != nil && it.Next() {
		_ = it.Value()
	}
	if it != nil && it.Err() != nil {
		log.Fatal(it.Err())
	}
	reportResult("jconv iterate", len(input), time.Since(start))
}

func benchBSON(input []byte) {
	reg := jconv.NewRegistry()
	start := time.Now()
	it, err := reg.IterateOver(jconv.TypeFor[bson.Raw](), bytes.NewReader(input), make([]byte, 4096))
	if err != nil {
		log.Fatal(err)
	}
	for it != nil && it.Next() {
		_ = it.Value()
	}
	if it != nil && it.Err() != nil {
		log.Fatal(it.Err())
	}
	reportResult("jconv bson", len(input), time.Since(start))
}

func benchStdlib(input []byte) {
	start := time.Now()
	var docs []map[string]any
	if err := json.Unmarshal(input, &docs); err != nil {
		log.Fatal(err)
	}
	reportResult("encoding/json", len(input), time.Since(start))
}

func benchGoJSON(input []byte) {
	start := time.Now()
	var docs []map[string]any
	if err := gojson.Unmarshal(input, &docs); err != nil {
		log.Fatal(err)
	}
	reportResult("goccy/go-json", len(input), time.Since(start))
}

func benchNaiveBSON(input []byte) {
	start := time.Now()
	var docs []map[string]any
	if err := json.Unmarshal(input, &docs); err != nil {
		log.Fatal(err)
	}
	for _, m := range docs {
		buf, err := bson.Marshal(m)
		if err != nil {
			log.Fatal(err)
		}
		_ = buf
	}
	reportResult("naive json->bson", len(input), time.Since(start))
}

func reportResult(label string, size int, elapsed time.Duration) {
	throughput := float64(size) / float64(elapsed.Microseconds())
	fmt.Printf("%17s %.2f MB/s\n", label, throughput)
}
