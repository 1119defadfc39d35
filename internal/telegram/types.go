// tgxp-bridge - A bridge between Telegram-style chat groups and XMPP-style
// federated rooms.
// Copyright (C) 2026 tgxp-bridge contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package telegram

// The types below are the subset of the Bot API's update/message schema the
// poller pattern-matches on. Decoding straight into a tagged struct is the
// Go equivalent of matching over the update dict in the source this bridge
// was modeled on.

type Update struct {
	UpdateID      int64             `json:"update_id"`
	Message       *Message          `json:"message"`
	EditedMessage *Message          `json:"edited_message"`
	MyChatMember  *ChatMemberUpdate `json:"my_chat_member"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type Sticker struct {
	FileID     string `json:"file_id"`
	IsAnimated bool   `json:"is_animated"`
	IsVideo    bool   `json:"is_video"`
	Emoji      string `json:"emoji"`
}

type Video struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type VideoNote struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type Voice struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type Audio struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type Document struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type Animation struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type ForumTopicCreated struct {
	Name string `json:"name"`
}

type MessageOrigin struct {
	SenderUserName string `json:"sender_user_name"`
	Type           string `json:"type"`
}

type Message struct {
	MessageID         int64              `json:"message_id"`
	MessageThreadID   int64              `json:"message_thread_id"`
	IsTopicMessage    bool               `json:"is_topic_message"`
	Chat              Chat               `json:"chat"`
	From              *User              `json:"from"`
	Text              string             `json:"text"`
	Caption           string             `json:"caption"`
	ReplyToMessage    *Message           `json:"reply_to_message"`
	ForwardOrigin     *MessageOrigin     `json:"forward_origin"`
	ForumTopicCreated *ForumTopicCreated `json:"forum_topic_created"`

	Sticker   *Sticker    `json:"sticker"`
	Photo     []PhotoSize `json:"photo"`
	Video     *Video      `json:"video"`
	VideoNote *VideoNote  `json:"video_note"`
	Animation *Animation  `json:"animation"`
	Voice     *Voice      `json:"voice"`
	Audio     *Audio      `json:"audio"`
	Document  *Document   `json:"document"`
}

type ChatMember struct {
	Status string `json:"status"`
}

type ChatMemberUpdate struct {
	Chat          Chat       `json:"chat"`
	NewChatMember ChatMember `json:"new_chat_member"`
}
