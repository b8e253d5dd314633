// issue-token prints a bearer token for an operator of one client, for
// local development against the API (API_SECRET must match the server).
//
// Usage (from backend directory):
//
//	go run ./cmd/issue-token -client client-greenops -user 7 -name "Field Engineer"
//
// With -session the token is stored in Redis (REDIS_ADDRESS) behind an opaque
// dashboard session token, sent as the "token" header.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/middlewares"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/google/uuid"
)

func main() {
	clientId := flag.String("client", models.FixtureClientId, "Client id the operator belongs to")
	userId := flag.Int("user", 1, "Operator id")
	username := flag.String("username", "operator", "Operator login")
	name := flag.String("name", "Operator", "Operator display name")
	admin := flag.Bool("admin", false, "Issue a platform admin token (sees every client)")
	session := flag.Bool("session", false, "Store the token in Redis and print a dashboard session token instead")
	flag.Parse()

	claim := utils.JwtCustomClaim{
		ID:       *userId,
		Username: strings.TrimSpace(*username),
		Name:     strings.TrimSpace(*name),
		ClientId: strings.TrimSpace(*clientId),
	}
	if *admin {
		claim.Role = "admin"
	}
	token, err := utils.JwtGenerate(claim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	if !*session {
		fmt.Println(token)
		return
	}

	config.ConnectRedisWithRetry()
	sessionToken := uuid.NewString()
	if err := config.SetRedisValue(middlewares.SessionTokenKey(sessionToken), token, utils.TokenLifespan()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to store session token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(sessionToken)
}
