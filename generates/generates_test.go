package generates_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/generates"
	"github.com/kaz29/oauth-server/models"
)

func generateBasic() *oauthserver.GenerateBasic {
	ti := models.NewToken()
	ti.SetClientID("123456")
	ti.SetOwnerModel("Users")
	ti.SetOwnerID("999999")
	ti.SetScope("read write")
	ti.SetAccessCreateAt(time.Now())
	ti.SetAccessExpiresIn(time.Hour)
	return &oauthserver.GenerateBasic{
		Client: &models.Client{
			ID:     "123456",
			Secret: "123456",
		},
		OwnerModel: "Users",
		OwnerID:    "999999",
		CreateAt:   time.Now(),
		TokenInfo:  ti,
	}
}

func TestAuthorizeGenerate(t *testing.T) {
	data := generateBasic()
	gen := generates.NewAuthorizeGenerate()

	code, err := gen.Token(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if code == "" {
		t.Fatal("empty code")
	}

	other, err := gen.Token(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if other == code {
		t.Error("codes must not repeat")
	}
}

func TestAccessGenerate(t *testing.T) {
	data := generateBasic()
	gen := generates.NewAccessGenerate()

	access, refresh, err := gen.Token(context.Background(), data, true)
	if err != nil {
		t.Fatal(err)
	}
	if access == "" || refresh == "" {
		t.Fatal("empty token pair")
	}
	if access == refresh {
		t.Error("access and refresh must differ")
	}

	access2, refresh2, err := gen.Token(context.Background(), data, false)
	if err != nil {
		t.Fatal(err)
	}
	if refresh2 != "" {
		t.Error("refresh generated when not requested")
	}
	if access2 == access {
		t.Error("tokens must not repeat")
	}
}

func TestJWTAccessGenerate(t *testing.T) {
	data := generateBasic()
	gen := generates.NewJWTAccessGenerate("kid-1", []byte("00000000"), jwt.SigningMethodHS512)

	access, refresh, err := gen.Token(context.Background(), data, true)
	if err != nil {
		t.Fatal(err)
	}
	if refresh == "" {
		t.Error("expected refresh token")
	}

	token, err := jwt.ParseWithClaims(access, &generates.JWTAccessClaims{}, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Errorf("unexpected signing method: %v", tk.Header["alg"])
		}
		return []byte("00000000"), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	claims, ok := token.Claims.(*generates.JWTAccessClaims)
	if !ok || !token.Valid {
		t.Fatal("invalid token claims")
	}
	if claims.ClientID != "123456" {
		t.Errorf("client_id claim: %s", claims.ClientID)
	}
	if claims.OwnerModel != "Users" {
		t.Errorf("owner_model claim: %s", claims.OwnerModel)
	}
	if claims.Subject != "999999" {
		t.Errorf("sub claim: %s", claims.Subject)
	}
	if claims.Scope != "read write" {
		t.Errorf("scope claim: %s", claims.Scope)
	}
	if token.Header["kid"] != "kid-1" {
		t.Errorf("kid header: %v", token.Header["kid"])
	}
}
