//go:build tools
// +build tools

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	base := "http://localhost:4040"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}
	pool := "smoke"

	// 1) create, tolerating a pool left over from a previous run
	b := call(http.MethodPost, base+"/pools?name="+pool)
	fmt.Println("--- create ---")
	fmt.Println(string(b))

	// 2) feed OS entropy
	fmt.Println("--- entropy ---")
	fmt.Println(string(call(http.MethodPost, base+"/pools/"+pool+"/entropy?source=os")))

	// 3) draw
	var r struct {
		Value   uint64 `json:"value"`
		Hex     string `json:"hex"`
		Counter uint64 `json:"counter"`
	}
	if err := json.Unmarshal(call(http.MethodGet, base+"/pools/"+pool+"/rand?width=8"), &r); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse rand JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("--- rand ---\nvalue=%d hex=%s counter=%d\n", r.Value, r.Hex, r.Counter)

	// 4) journal
	fmt.Println("--- journal/verify ---")
	fmt.Println(string(call(http.MethodGet, base+"/journal/verify")))
}

func call(method, url string) []byte {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s failed: %v\n", method, url, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		fmt.Fprintf(os.Stderr, "%s %s: %s: %s\n", method, url, resp.Status, b)
		os.Exit(1)
	}
	return b
}
