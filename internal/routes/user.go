package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/kyc"
	"github.com/benki/benki/internal/middleware"
	"github.com/benki/benki/internal/portfolio"
	"github.com/benki/benki/internal/profile"
	"github.com/benki/benki/internal/progress"
)

// RegisterUserRoutes wires the endpoints addressed by a user id. With
// enforce set, each requires the caller's own session.
func RegisterUserRoutes(r fiber.Router, enforce bool, s Services) {
	own := middleware.OwnUser(enforce)

	profiles := profile.NewHandler(s.Profiles)
	r.Get("/user-profile/:userId", own, profiles.Get)
	r.Post("/user-profile/:userId", own, profiles.Update)

	kycHandler := kyc.NewHandler(s.KYC)
	r.Post("/kyc/:userId", own, kycHandler.Submit)
	if enforce {
		r.Post("/kyc/:userId/review", middleware.RequireSession(), kycHandler.Review)
	} else {
		r.Post("/kyc/:userId/review", kycHandler.Review)
	}

	progressHandler := progress.NewHandler(s.Progress)
	r.Get("/user-progress/:userId", own, progressHandler.Get)
	r.Post("/user-progress/:userId", own, progressHandler.Update)

	portfolioHandler := portfolio.NewHandler(s.Portfolio)
	r.Post("/user-investment/:userId", own, portfolioHandler.Invest)
	r.Post("/user-funds/:userId", own, portfolioHandler.Fund)
	r.Get("/user-transactions/:userId", own, portfolioHandler.Transactions)
	r.Get("/portfolio/:userId", own, portfolioHandler.Summary)
}
