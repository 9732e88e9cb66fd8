package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-monitor/internal/chat"
	"attendance-monitor/internal/meetings"
	"attendance-monitor/internal/sites"
)

func (h *MonitorHandler) collaborationActions() map[string]action {
	return map[string]action{
		"send_chat_message":      write(h.sendChat),
		"get_chat_messages":      read(h.chatMessages, emptyList),
		"get_chat_conversations": read(h.chatConversations, emptyList),
		"mark_chat_read":         write(h.markChatRead),
		"delete_chat_message":    write(h.deleteChat),

		"get_meetings":   read(h.meetings, emptyList),
		"add_meeting":    write(h.addMeeting),
		"update_meeting": write(h.updateMeeting),
		"delete_meeting": write(h.deleteMeeting),

		"add_monitored_site":    write(h.addSite),
		"get_monitored_sites":   read(h.sites, emptyList),
		"update_monitored_site": write(h.updateSite),
		"delete_monitored_site": write(h.deleteSite),
		"record_downtime":       write(h.recordDowntime),
		"get_downtime_history":  read(h.downtimeHistory, emptyList),
		"check_sites":           write(h.checkSites),
	}
}

func (h *MonitorHandler) sendChat(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	ts, err := p.Time("timestamp")
	if err != nil {
		return nil, err
	}
	msg, err := h.svc.Chat.Send(ctx, chat.SendRequest{
		DeviceID:       p.String("device_id"),
		Sender:         p.String("sender"),
		Message:        p.String("message"),
		IsFromDesktop:  p.Bool("is_from_desktop", false),
		RecipientID:    p.String("recipient_id"),
		ConversationID: p.String("conversation_id"),
		Timestamp:      ts,
	})
	if err != nil {
		return nil, err
	}
	return &reply{Data: msg, Message: "Message sent"}, nil
}

func (h *MonitorHandler) chatMessages(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	msgs, err := h.svc.Chat.Messages(ctx, p.String("device_id"), p.String("conversation_id"), p.Int("limit", 0), p.Int("offset", 0))
	if err != nil {
		return nil, err
	}
	return withData(list(msgs))
}

func (h *MonitorHandler) chatConversations(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	convs, err := h.svc.Chat.Conversations(ctx, p.String("device_id"))
	if err != nil {
		return nil, err
	}
	return withData(list(convs))
}

func (h *MonitorHandler) markChatRead(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	ids := p.UintList("message_ids")
	if len(ids) == 0 {
		ids = p.UintList("message_id")
	}
	updated, err := h.svc.Chat.MarkRead(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &reply{Data: map[string]int64{"updated": updated}, Message: "Messages marked as read"}, nil
}

func (h *MonitorHandler) deleteChat(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Chat.Delete(ctx, idParam(p, "message_id", "id")); err != nil {
		return nil, err
	}
	return withMessage("Message deleted")
}

// dayRange turns inclusive YYYY-MM-DD bounds into a half-open time range.
func dayRange(p Params) (time.Time, time.Time, error) {
	from, err := p.Time("start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := p.Time("end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *MonitorHandler) meetings(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	from, to, err := dayRange(p)
	if err != nil {
		return nil, err
	}
	rows, err := h.svc.Meetings.List(ctx, p.String("company_name"), from, to)
	if err != nil {
		return nil, err
	}
	return withData(list(rows))
}

func idParam(p Params, keys ...string) uint {
	for _, k := range keys {
		if id := p.Uint(k); id != 0 {
			return id
		}
	}
	return 0
}

func meetingInput(p Params) (meetings.Input, error) {
	start, err := p.Time("start_time")
	if err != nil {
		return meetings.Input{}, err
	}
	end, err := p.TimePtr("end_time")
	if err != nil {
		return meetings.Input{}, err
	}
	return meetings.Input{
		ID:           idParam(p, "id", "meeting_id"),
		CompanyName:  p.String("company_name"),
		Title:        p.String("title"),
		Description:  p.String("description"),
		Organizer:    p.String("organizer"),
		Participants: p.String("participants"),
		MeetingLink:  p.String("meeting_link"),
		StartTime:    start,
		EndTime:      end,
		Status:       p.String("status"),
	}, nil
}

func (h *MonitorHandler) addMeeting(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	in, err := meetingInput(p)
	if err != nil {
		return nil, err
	}
	m, err := h.svc.Meetings.Add(ctx, in)
	if err != nil {
		return nil, err
	}
	return &reply{Data: m, Message: "Meeting added"}, nil
}

func (h *MonitorHandler) updateMeeting(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	in, err := meetingInput(p)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Meetings.Update(ctx, in); err != nil {
		return nil, err
	}
	return withMessage("Meeting updated")
}

func (h *MonitorHandler) deleteMeeting(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Meetings.Delete(ctx, idParam(p, "id", "meeting_id"), p.String("company_name")); err != nil {
		return nil, err
	}
	return withMessage("Meeting deleted")
}

func siteInput(p Params) sites.SiteInput {
	return sites.SiteInput{
		ID:            idParam(p, "site_id", "id"),
		SiteName:      p.String("site_name"),
		SiteURL:       p.String("site_url"),
		CompanyName:   p.String("company_name"),
		CheckInterval: p.Int("check_interval", 0),
	}
}

func (h *MonitorHandler) addSite(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	site, err := h.svc.Sites.Add(ctx, siteInput(p))
	if err != nil {
		return nil, err
	}
	return &reply{Data: site, Message: "Site added"}, nil
}

func (h *MonitorHandler) sites(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	rows, err := h.svc.Sites.List(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(rows))
}

func (h *MonitorHandler) updateSite(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	site, err := h.svc.Sites.Update(ctx, siteInput(p))
	if err != nil {
		return nil, err
	}
	return &reply{Data: site, Message: "Site updated"}, nil
}

func (h *MonitorHandler) deleteSite(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Sites.Delete(ctx, idParam(p, "site_id", "id")); err != nil {
		return nil, err
	}
	return withMessage("Site deleted")
}

func (h *MonitorHandler) recordDowntime(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	status := p.String("status")
	downtime, err := h.svc.Sites.RecordStatus(ctx, idParam(p, "site_id", "id"), p.String("company_name"), status)
	if err != nil {
		return nil, err
	}
	return &reply{Data: downtime, Message: "Site marked " + status}, nil
}

func (h *MonitorHandler) downtimeHistory(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	rows, err := h.svc.Sites.DowntimeHistory(ctx, idParam(p, "site_id", "id"))
	if err != nil {
		return nil, err
	}
	return withData(list(rows))
}

func (h *MonitorHandler) checkSites(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	results, err := h.svc.Sites.CheckSites(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(results))
}
