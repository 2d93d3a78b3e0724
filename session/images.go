package session

import (
	"context"
	"fmt"
	"strings"

	"miniature_creator/blob_codec"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/persist_queue"
	"miniature_creator/png_info_extractor"

	"github.com/gabriel-vasile/mimetype"
)

func checkView(view entities.View) error {
	if _, err := entities.ParseView(string(view)); err != nil {
		return newValidationError("view", err.Error())
	}

	return nil
}

// AddImage appends img to a view of the open miniature and selects it,
// opening a new scratch miniature when none is open. The image and the
// recomputed miniature record are written in the background; failures there
// are logged and published on Failures but never undo the in-memory change.
// A missing id or timestamp is filled in; the image id is returned.
func (s *Session) AddImage(view entities.View, img entities.GeneratedImage) (identifiers.ImageID, error) {
	if err := checkView(view); err != nil {
		return "", err
	}

	if img.ID.IsZero() {
		img.ID = identifiers.NewImageID()
	}

	if img.Timestamp.IsZero() {
		img.Timestamp = s.clock.Now()
	}

	s.mu.Lock()

	if s.state.CurrentMiniatureID.IsZero() {
		s.state.CurrentMiniatureID = identifiers.NewMiniatureID()
	}

	t := s.appendLocked(view, &img)
	s.mu.Unlock()

	s.enqueue(s.addImageTask(t, view, img))

	return img.ID, nil
}

// appendLocked stamps img with the next append sequence, adds it to the open
// miniature, selects it and returns the persistence target for it.
func (s *Session) appendLocked(view entities.View, img *entities.GeneratedImage) target {
	img.Seq = s.nextSeqLocked()

	vs := s.state.View(view)
	vs.Images = append(vs.Images, *img)
	vs.SelectedImageID = img.ID

	t := s.captureLocked(true)
	t.selectView = view
	t.selectImage = img.ID

	s.publishLocked()

	return t
}

// nextSeqLocked returns a strictly increasing append sequence. It follows
// the clock in microseconds so sequences keep growing across restarts.
func (s *Session) nextSeqLocked() int64 {
	seq := s.clock.Now().UnixMicro()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}

	s.lastSeq = seq

	return seq
}

func (s *Session) addImageTask(t target, view entities.View, img entities.GeneratedImage) persist_queue.Task {
	return persist_queue.Task{
		Name:        "add image",
		MiniatureID: t.id,
		Run: func(ctx context.Context) error {
			store, err := s.store.Open(ctx)
			if err != nil {
				return err
			}

			blob, err := blob_codec.ToBinary(img.DataURI)
			if err != nil {
				return err
			}

			_, err = store.Images.Save(ctx, &entities.Image{
				ID:          img.ID,
				MiniatureID: t.id,
				View:        view,
				Content:     *blob,
				Prompt:      img.Prompt,
				Timestamp:   img.Timestamp,
				Seq:         img.Seq,
			})
			if err != nil {
				return fmt.Errorf("saving image: %w", err)
			}

			err = s.persistMiniature(ctx, store, t)
			if err != nil {
				return fmt.Errorf("saving miniature: %w", err)
			}

			return s.refreshMiniatures(ctx, store)
		},
	}
}

// SelectImage marks an image of the open miniature as selected. Ids that
// are not in the view are ignored.
func (s *Session) SelectImage(view entities.View, id identifiers.ImageID) error {
	if err := checkView(view); err != nil {
		return err
	}

	s.mu.Lock()

	vs := s.state.View(view)

	found := false

	for _, img := range vs.Images {
		if img.ID == id {
			found = true

			break
		}
	}

	if !found {
		s.mu.Unlock()

		return nil
	}

	vs.SelectedImageID = id

	t := s.captureLocked(true)
	s.publishLocked()
	s.mu.Unlock()

	s.enqueue(s.recomputeTask("select image", t))

	return nil
}

// DeleteImage removes an image from the open miniature. A deleted selection
// moves to the last remaining image of the view. The store is updated
// before DeleteImage returns.
func (s *Session) DeleteImage(ctx context.Context, view entities.View, id identifiers.ImageID) error {
	const op = "session.Session.DeleteImage"

	if err := checkView(view); err != nil {
		return err
	}

	s.mu.Lock()

	vs := s.state.View(view)

	index := -1

	for i, img := range vs.Images {
		if img.ID == id {
			index = i

			break
		}
	}

	if index < 0 {
		s.mu.Unlock()

		return nil
	}

	vs.Images = append(vs.Images[:index:index], vs.Images[index+1:]...)

	if vs.SelectedImageID == id {
		vs.SelectedImageID = ""

		if n := len(vs.Images); n > 0 {
			vs.SelectedImageID = vs.Images[n-1].ID
		}
	}

	t := s.captureLocked(true)
	s.publishLocked()
	s.mu.Unlock()

	s.thumbCache.Delete(id.String())

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = store.Images.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.persistMiniature(ctx, store, t)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.refreshMiniatures(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ImportImage adds an uploaded file to a view. The prompt comes from text
// embedded in a PNG when there is one.
func (s *Session) ImportImage(view entities.View, fileName string, data []byte) (identifiers.ImageID, error) {
	if err := checkView(view); err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", newValidationError("file", "is empty")
	}

	mimeType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	if !strings.HasPrefix(mimeType, "image/") {
		return "", newValidationError("file", fmt.Sprintf("is not an image (%s)", mimeType))
	}

	prompt := "Uploaded: " + fileName

	if png_info_extractor.IsPNG(data) {
		extractor, err := png_info_extractor.New(png_info_extractor.Config{PngData: data})
		if err == nil {
			embedded, err := extractor.EmbeddedPrompt()
			if err == nil && embedded != "" {
				prompt = embedded
			}
		}
	}

	uri, err := blob_codec.ToDataURI(&blob_codec.Blob{MimeType: mimeType, Data: data})
	if err != nil {
		return "", err
	}

	return s.AddImage(view, entities.GeneratedImage{DataURI: uri, Prompt: prompt})
}
