package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gustycube/conjunctions/internal/queue"
)

func main() {
	var sats, start, end string
	var addr string
	var key string
	var requeue bool
	flag.StringVar(&sats, "satellites", "a,b", "comma-separated spacecraft ids")
	flag.StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	flag.StringVar(&end, "end", "", "last day (YYYY-MM-DD, default today)")
	flag.StringVar(&addr, "redis", "127.0.0.1:6379", "redis addr")
	flag.StringVar(&key, "key", "conjunctions:queue", "redis queue key")
	flag.BoolVar(&requeue, "requeue", false, "move leased but unacknowledged units back to the queue and exit")
	flag.Parse()
	q, err := queue.NewRedis(addr, key, 0)
	if err != nil { fmt.Fprintln(os.Stderr, "redis:", err); os.Exit(1) }
	defer q.Close()
	ctx := context.Background()
	if requeue {
		n, err := q.Requeue(ctx)
		if err != nil { fmt.Fprintln(os.Stderr, "requeue:", err); os.Exit(1) }
		fmt.Println("requeued", n, "units on", key)
		return
	}
	if start == "" { fmt.Fprintln(os.Stderr, "missing -start"); os.Exit(1) }
	first, err := time.Parse("2006-01-02", start)
	if err != nil { fmt.Fprintln(os.Stderr, "start:", err); os.Exit(1) }
	last := time.Now().UTC().Truncate(24 * time.Hour)
	if end != "" {
		if last, err = time.Parse("2006-01-02", end); err != nil { fmt.Fprintln(os.Stderr, "end:", err); os.Exit(1) }
	}
	var list []string
	for _, s := range strings.Split(sats, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" { list = append(list, s) }
	}
	n := 0
	for _, u := range queue.Units(list, first, last) {
		if err := q.Seed(ctx, u); err != nil { fmt.Fprintln(os.Stderr, "seed", u, ":", err); os.Exit(1) }
		n++
	}
	fmt.Println("seeded", n, "units on", key)
}
