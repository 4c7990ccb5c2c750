// Package docs registers the swagger spec for the wallet core API.
// Regenerate with `swag init -g cmd/walletd/main.go` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/payment/request": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payment"],
                "summary": "Open a payment request",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/payment/create": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payment"],
                "summary": "Create an x402 payment demand",
                "responses": {"402": {"description": "Payment Required"}}
            }
        },
        "/payment/verify": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payment"],
                "summary": "Verify a claimed payment",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wallet/provision": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["wallet"],
                "summary": "Ensure the owner's managed wallet",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wallet/balance": {
            "get": {
                "produces": ["application/json"],
                "tags": ["wallet"],
                "summary": "Get managed wallet balance",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wallet/pay": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["wallet"],
                "summary": "Settle a payment request from the managed wallet",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/token-gate/check": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["token-gate"],
                "summary": "Evaluate token gate specs against an owner's wallet",
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Wallet Core API",
	Description:      "Custodial wallet and on-chain payment subsystem",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
