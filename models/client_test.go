package models_test

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/kaz29/oauth-server/models"
)

func TestHashedClientVerifyPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	cli := &models.HashedClient{Client: models.Client{
		ID:     "1",
		Secret: string(hash),
	}}

	if !cli.VerifyPassword("s3cret") {
		t.Error("correct secret rejected")
	}
	if cli.VerifyPassword("wrong") {
		t.Error("wrong secret accepted")
	}
	if cli.VerifyPassword("") {
		t.Error("empty secret accepted")
	}
}

func TestHashedClientEmptyHash(t *testing.T) {
	cli := &models.HashedClient{Client: models.Client{ID: "1"}}
	if cli.VerifyPassword("anything") {
		t.Error("client without a stored hash must reject every secret")
	}
}
