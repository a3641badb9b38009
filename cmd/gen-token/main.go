// Command gen-token mints HS256 bearer tokens accepted by the API when
// TASKFLOW_AUTH_MODE=hs256.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"

	"github.com/IDGHIM/TaskFlow/config"
)

func main() {
	var (
		count  = flag.Int("count", 1, "number of tokens to generate")
		prefix = flag.String("prefix", "user", "prefix for generated owners when count > 1")
		start  = flag.Int("start", 1, "starting index for generated owners when count > 1")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
		output = flag.String("output", "", "file to write generated tokens as a JSON array")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("TASKFLOW_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *count < 1 || *start < 1 {
		log.Fatal("count and start must be at least 1")
	}
	args := flag.Args()
	if len(args) > 0 && *count > 1 {
		log.Fatal("explicit owner cannot be combined with count > 1")
	}

	owners := ownerNames(*count, *prefix, *start, args)
	tokens := make([]string, len(owners))
	for i, owner := range owners {
		tok, err := signToken([]byte(cfg.AuthSecret), owner, cfg.AuthAudience, *ttl, time.Now())
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		tokens[i] = tok
	}

	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

func ownerNames(count int, prefix string, start int, args []string) []string {
	switch {
	case len(args) > 0:
		return []string{args[0]}
	case count == 1:
		return []string{prefix}
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", prefix, start+i)
	}
	return names
}

func signToken(secret []byte, owner, audience string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("TASKFLOW_AUTH_SECRET must be set")
	}
	claims := jwt.MapClaims{
		"sub": owner,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if audience != "" {
		claims["aud"] = audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
