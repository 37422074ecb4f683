package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tourbook/booking-service/internal/utils"
	"github.com/tourbook/booking-service/pkg/jwt"
)

func main() {
	tokenFor := flag.String("token-user", "", "also mint a development access token for this user id")
	admin := flag.Bool("admin", false, "give the development token the admin role")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the tour booking service")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Println()

	if *tokenFor != "" {
		userID, err := uuid.Parse(*tokenFor)
		if err != nil {
			log.Fatalf("Invalid -token-user: %v", err)
		}
		roles := []string{"customer"}
		if *admin {
			roles = append(roles, jwt.RoleAdmin)
		}
		token, err := jwt.NewService(jwtSecret, "", 24*time.Hour).GenerateAccessToken(userID, "", roles)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		fmt.Println("Development access token (valid 24h, signed with the secret above):")
		fmt.Println(token)
		fmt.Println()
	}

	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
