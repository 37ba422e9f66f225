package signalling

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/api"
)

func (s *Server) setupReportApi() {
	authorize := basicauth.New(basicauth.Config{
		Realm: "Forbidden",
		Authorizer: func(user, pass string) bool {
			credential := s.cfgManager.Get().Security.AdminCredential
			return credential == nil || user == "admin" && pass == *credential
		},
	})

	s.app.Route("/api/report", func(router fiber.Router) {
		router.Use(authorize)

		router.Get("/rooms", func(c *fiber.Ctx) error {
			rooms := s.rooms.Rooms()
			reports := make([]api.RoomReport, 0, len(rooms))
			for _, room := range rooms {
				// snapshot on the room's worker so the report never sees
				// a half-applied mutation
				s.workerFor(room.ID).DoWait(func() {
					reports = append(reports, api.ToRoomReport(room))
				})
			}
			return c.JSON(reports)
		})

		router.Get("/rooms/:roomId", func(c *fiber.Ctx) error {
			room, ok := s.rooms.Get(c.Params("roomId"))
			if !ok {
				return c.Status(fiber.StatusNotFound).SendString("Room not found")
			}
			var report api.RoomReport
			s.workerFor(room.ID).DoWait(func() {
				report = api.ToRoomReport(room)
			})
			return c.JSON(report)
		})
	})

	s.app.Route("/api/admin", func(router fiber.Router) {
		router.Use(authorize)

		router.Post("/sessions/:peerId/revoke", func(c *fiber.Ctx) error {
			var req revokeSessionRequest
			if len(c.Body()) > 0 {
				if err := c.BodyParser(&req); err != nil {
					return c.Status(fiber.StatusBadRequest).SendString("Bad Request")
				}
			}
			reason := req.Reason
			if reason == "" {
				reason = "revoked by administrator"
			}
			if !s.RevokeSession(c.Params("peerId"), reason) {
				return c.Status(fiber.StatusNotFound).SendString("Peer not found")
			}
			return c.Status(fiber.StatusOK).SendString("Ok")
		})
	})
}

type revokeSessionRequest struct {
	Reason string `json:"reason"`
}
