package tmi

// This file turns the raw map[string]any tag set every IRC message carries
// into the typed userstate/roomstate structs callers actually want on an
// event. Every converter here is exercised from handler.go: each public
// event that used to carry only raw tags now also carries the matching
// typed value as its final argument, so a caller no longer has to
// re-derive msg-param-* parsing that tmi already did once.

// tagString pulls a string tag, defaulting to "" when absent or the wrong
// type — Twitch omits tags rather than sending them empty, so a missing
// key and an empty value are indistinguishable here by design.
func tagString(tags map[string]any, key string) string {
	val, _ := tags[key].(string)
	return val
}

// tagBool pulls a bool tag. handleMessage has already normalized "0"/"1"
// string tags to real bools by the time a converter sees them.
func tagBool(tags map[string]any, key string) bool {
	val, _ := tags[key].(bool)
	return val
}

func convertToChatUserstate(tags map[string]any) ChatUserstate {
	return ChatUserstate{
		CommonUserstate: convertToCommonUserstate(tags),
		Username:        tagString(tags, "username"),
		Bits:            tagString(tags, "bits"),
	}
}

func convertToSubUserstate(tags map[string]any) SubUserstate {
	return SubUserstate{
		CommonSubUserstate:        convertToCommonSubUserstate(tags),
		MsgParamCumulativeMonths:  tagString(tags, "msg-param-cumulative-months"),
		MsgParamShouldShareStreak: tagBool(tags, "msg-param-should-share-streak"),
		MsgParamStreakMonths:      tagString(tags, "msg-param-streak-months"),
	}
}

func convertToSubMysteryGiftUserstate(tags map[string]any) SubMysteryGiftUserstate {
	return SubMysteryGiftUserstate{
		CommonSubUserstate:  convertToCommonSubUserstate(tags),
		MsgParamSenderCount: tagString(tags, "msg-param-sender-count"),
		MsgParamOriginID:    tagString(tags, "msg-param-origin-id"),
	}
}

func convertToSubGiftUserstate(tags map[string]any) SubGiftUserstate {
	return SubGiftUserstate{
		CommonGiftSubUserstate: convertToCommonGiftSubUserstate(tags),
		MsgParamSenderCount:    tagString(tags, "msg-param-sender-count"),
		MsgParamOriginID:       tagString(tags, "msg-param-origin-id"),
	}
}

func convertToAnonSubGiftUserstate(tags map[string]any) AnonSubGiftUserstate {
	return AnonSubGiftUserstate{
		CommonGiftSubUserstate: convertToCommonGiftSubUserstate(tags),
	}
}

func convertToAnonSubMysteryGiftUserstate(tags map[string]any) AnonSubMysteryGiftUserstate {
	return AnonSubMysteryGiftUserstate{
		CommonSubUserstate: convertToCommonSubUserstate(tags),
	}
}

func convertToSubGiftUpgradeUserstate(tags map[string]any) SubGiftUpgradeUserstate {
	return SubGiftUpgradeUserstate{
		CommonSubUserstate:  convertToCommonSubUserstate(tags),
		MsgParamSenderName:  tagString(tags, "msg-param-sender-name"),
		MsgParamSenderLogin: tagString(tags, "msg-param-sender-login"),
	}
}

func convertToAnonSubGiftUpgradeUserstate(tags map[string]any) AnonSubGiftUpgradeUserstate {
	return AnonSubGiftUpgradeUserstate{
		CommonSubUserstate: convertToCommonSubUserstate(tags),
	}
}

func convertToPrimeUpgradeUserstate(tags map[string]any) PrimeUpgradeUserstate {
	return PrimeUpgradeUserstate{
		CommonSubUserstate: convertToCommonSubUserstate(tags),
	}
}

func convertToRaidUserstate(tags map[string]any) RaidUserstate {
	return RaidUserstate{
		UserNoticeState:     convertToUserNoticeState(tags),
		MsgParamDisplayName: tagString(tags, "msg-param-displayName"),
		MsgParamLogin:       tagString(tags, "msg-param-login"),
		MsgParamViewerCount: tagString(tags, "msg-param-viewerCount"),
	}
}

func convertToRitualUserstate(tags map[string]any) RitualUserstate {
	return RitualUserstate{
		UserNoticeState:    convertToUserNoticeState(tags),
		MsgParamRitualName: tagString(tags, "msg-param-ritual-name"),
	}
}

func convertToBanUserstate(tags map[string]any) BanUserstate {
	return BanUserstate{
		RoomID:       tagString(tags, "room-id"),
		TargetUserID: tagString(tags, "target-user-id"),
		TMISentTs:    tagString(tags, "tmi-sent-ts"),
	}
}

func convertToTimeoutUserstate(tags map[string]any) TimeoutUserstate {
	return TimeoutUserstate{
		BanUserstate: convertToBanUserstate(tags),
		BanDuration:  tagString(tags, "ban-duration"),
	}
}

func convertToDeleteUserstate(tags map[string]any) DeleteUserstate {
	return DeleteUserstate{
		Login:       tagString(tags, "login"),
		Message:     tagString(tags, "message"),
		TargetMsgID: tagString(tags, "target-msg-id"),
	}
}

func convertToRoomState(tags map[string]any) RoomState {
	return RoomState{
		BroadcasterLang: tagString(tags, "broadcaster-lang"),
		EmoteOnly:       tagBool(tags, "emote-only"),
		FollowersOnly:   tagString(tags, "followers-only"),
		R9K:             tagBool(tags, "r9k"),
		Rituals:         tagBool(tags, "rituals"),
		RoomID:          tagString(tags, "room-id"),
		Slow:            tagString(tags, "slow"),
		SubsOnly:        tagBool(tags, "subs-only"),
		Channel:         tagString(tags, "channel"),
	}
}

// convertToCommonUserstate also copies every raw tag into Extra, so a
// caller who needs a tag this struct doesn't model explicitly still has
// it available without re-parsing the IRC line.
func convertToCommonUserstate(tags map[string]any) CommonUserstate {
	userstate := CommonUserstate{
		DisplayName:  tagString(tags, "display-name"),
		Color:        tagString(tags, "color"),
		Mod:          tagBool(tags, "mod"),
		Subscriber:   tagBool(tags, "subscriber"),
		Turbo:        tagBool(tags, "turbo"),
		UserID:       tagString(tags, "user-id"),
		RoomID:       tagString(tags, "room-id"),
		UserType:     tagString(tags, "user-type"),
		ID:           tagString(tags, "id"),
		EmotesRaw:    tagString(tags, "emotes-raw"),
		BadgesRaw:    tagString(tags, "badges-raw"),
		BadgeInfoRaw: tagString(tags, "badge-info-raw"),
		TMISentTs:    tagString(tags, "tmi-sent-ts"),
		Flags:        tagString(tags, "flags"),
		MessageType:  tagString(tags, "message-type"),
		Extra:        make(map[string]any, len(tags)),
	}

	if val, ok := tags["badges"].(map[string]string); ok {
		userstate.Badges = val
	}
	if val, ok := tags["badge-info"].(map[string]string); ok {
		userstate.BadgeInfo = val
	}
	if val, ok := tags["emotes"].(map[string][]string); ok {
		userstate.Emotes = val
	}

	for k, v := range tags {
		userstate.Extra[k] = v
	}

	return userstate
}

func convertToUserNoticeState(tags map[string]any) UserNoticeState {
	return UserNoticeState{
		CommonUserstate: convertToCommonUserstate(tags),
		Login:           tagString(tags, "login"),
		Message:         tagString(tags, "message"),
		SystemMsg:       tagString(tags, "system-msg"),
	}
}

func convertToCommonSubUserstate(tags map[string]any) CommonSubUserstate {
	return CommonSubUserstate{
		UserNoticeState:     convertToUserNoticeState(tags),
		MsgParamSubPlan:     SubMethod(tagString(tags, "msg-param-sub-plan")),
		MsgParamSubPlanName: tagString(tags, "msg-param-sub-plan-name"),
	}
}

func convertToCommonGiftSubUserstate(tags map[string]any) CommonGiftSubUserstate {
	return CommonGiftSubUserstate{
		CommonSubUserstate:           convertToCommonSubUserstate(tags),
		MsgParamRecipientDisplayName: tagString(tags, "msg-param-recipient-display-name"),
		MsgParamRecipientID:          tagString(tags, "msg-param-recipient-id"),
		MsgParamRecipientUserName:    tagString(tags, "msg-param-recipient-user-name"),
		MsgParamMonths:               tagString(tags, "msg-param-months"),
	}
}

// convertToSubMethods converts tags to SubMethods, used wherever a caller
// wants just the plan info without a full userstate (e.g. logging a sub
// event's tier alongside the rest of the payload).
func convertToSubMethods(tags map[string]any) SubMethods {
	methods := SubMethods{
		Plan:     SubMethod(tagString(tags, "msg-param-sub-plan")),
		PlanName: tagString(tags, "msg-param-sub-plan-name"),
	}
	if methods.Plan == SubMethodPrime {
		methods.Prime = true
	}
	return methods
}
