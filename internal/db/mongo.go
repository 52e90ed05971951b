package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"ArticleManager/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo — хранилище поверх MongoDB: коллекции articles и users,
// PDF — в GridFS.
type Mongo struct {
	client   *mongo.Client
	articles *mongo.Collection
	users    *mongo.Collection
	bucket   *gridfs.Bucket
}

var _ Store = (*Mongo)(nil)

// mongoArticle — документ в коллекции articles.
type mongoArticle struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Author    string             `bson:"author"`
	Abstract  string             `bson:"abstract"`
	Body      string             `bson:"body"`
	Approved  bool               `bson:"approved"`
	PDFFileID primitive.ObjectID `bson:"pdf_file_id"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d mongoArticle) model() models.Article {
	a := models.Article{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Author:    d.Author,
		Abstract:  d.Abstract,
		Body:      d.Body,
		Status:    models.StatusPending,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if !d.PDFFileID.IsZero() {
		a.PDFRef = d.PDFFileID.Hex()
	}
	if d.Approved {
		a.Status = models.StatusApproved
	}
	return a
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
}

// OpenMongo подключается к MongoDB (TLS берётся из URI, для Atlas это
// mongodb+srv://), пингует сервер и создаёт индексы.
func OpenMongo(ctx context.Context, cfg Config, log *slog.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("db: mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("db: mongo ping: %w", err)
	}

	database := client.Database(cfg.Name)
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(cfg.Bucket))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("db: gridfs bucket: %w", err)
	}

	m := &Mongo{
		client:   client,
		articles: database.Collection("articles"),
		users:    database.Collection("users"),
		bucket:   bucket,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info("db: connected", "backend", "mongodb", "database", cfg.Name, "bucket", cfg.Bucket)
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	if _, err := m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("db: users index: %w", err)
	}
	if _, err := m.articles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "approved", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "pdf_file_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("db: articles index: %w", err)
	}
	return nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (m *Mongo) InsertArticle(ctx context.Context, a models.Article) (string, error) {
	pdfID, err := parseObjectID(a.PDFRef)
	if err != nil {
		return "", fmt.Errorf("db: insert article: bad pdf ref %q", a.PDFRef)
	}
	res, err := m.articles.InsertOne(ctx, mongoArticle{
		Title:     a.Title,
		Author:    a.Author,
		Abstract:  a.Abstract,
		Body:      a.Body,
		Approved:  a.Status == models.StatusApproved,
		PDFFileID: pdfID,
		CreatedAt: a.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("db: insert article: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("db: insert article: unexpected id %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (models.Article, error) {
	var doc mongoArticle
	err := m.articles.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Article{}, ErrNotFound
	} else if err != nil {
		return models.Article{}, fmt.Errorf("db: find article: %w", err)
	}
	return doc.model(), nil
}

func (m *Mongo) GetArticle(ctx context.Context, id string) (models.Article, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return models.Article{}, err
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *Mongo) FindArticleByPDF(ctx context.Context, ref string) (models.Article, error) {
	oid, err := parseObjectID(ref)
	if err != nil {
		return models.Article{}, err
	}
	return m.findOne(ctx, bson.M{"pdf_file_id": oid})
}

func (m *Mongo) ListArticles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["approved"] = f.Status == models.StatusApproved
	}
	cur, err := m.articles.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("db: list articles: %w", err)
	}
	var docs []mongoArticle
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db: list articles: %w", err)
	}
	list := make([]models.Article, 0, len(docs))
	for _, d := range docs {
		list = append(list, d.model())
	}
	return list, nil
}

func (m *Mongo) update(ctx context.Context, id string, set bson.M) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := m.articles.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("db: update article: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) SetArticleStatus(ctx context.Context, id string, s models.Status) error {
	return m.update(ctx, id, bson.M{"approved": s == models.StatusApproved})
}

func (m *Mongo) UpdateArticle(ctx context.Context, id string, f models.ArticleFields, pdfRef string) error {
	set := bson.M{}
	if f.Title != nil {
		set["title"] = *f.Title
	}
	if f.Author != nil {
		set["author"] = *f.Author
	}
	if f.Abstract != nil {
		set["abstract"] = *f.Abstract
	}
	if f.Body != nil {
		set["body"] = *f.Body
	}
	if pdfRef != "" {
		pdfID, err := parseObjectID(pdfRef)
		if err != nil {
			return fmt.Errorf("db: update article: bad pdf ref %q", pdfRef)
		}
		set["pdf_file_id"] = pdfID
	}
	if len(set) == 0 {
		_, err := m.GetArticle(ctx, id)
		return err
	}
	return m.update(ctx, id, set)
}

func (m *Mongo) DeleteArticle(ctx context.Context, id string) (models.Article, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return models.Article{}, err
	}
	var doc mongoArticle
	err = m.articles.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Article{}, ErrNotFound
	} else if err != nil {
		return models.Article{}, fmt.Errorf("db: delete article: %w", err)
	}
	return doc.model(), nil
}

func (m *Mongo) FindAdminByEmail(ctx context.Context, email string) (models.Administrator, error) {
	return m.findAdmin(ctx, bson.M{"email": email})
}

func (m *Mongo) FindAdminByID(ctx context.Context, id string) (models.Administrator, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return models.Administrator{}, err
	}
	return m.findAdmin(ctx, bson.M{"_id": oid})
}

func (m *Mongo) findAdmin(ctx context.Context, filter bson.M) (models.Administrator, error) {
	var u mongoUser
	err := m.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Administrator{}, ErrNotFound
	} else if err != nil {
		return models.Administrator{}, fmt.Errorf("db: find admin: %w", err)
	}
	return models.Administrator{
		ID:           u.ID.Hex(),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
	}, nil
}

func (m *Mongo) UpsertAdmin(ctx context.Context, email, passwordHash string) (string, error) {
	_, err := m.users.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{
			"$set":         bson.M{"password_hash": passwordHash, "role": models.RoleAdmin},
			"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("db: upsert admin: %w", err)
	}
	a, err := m.FindAdminByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// PutPDF стримит файл в GridFS. Загрузка в драйвере контекст не принимает,
// поэтому отмену проверяем на каждом чтении.
func (m *Mongo) PutPDF(ctx context.Context, filename string, r io.Reader) (models.PDFFile, error) {
	cr := &countingReader{r: ctxReader{ctx: ctx, r: r}}
	oid, err := m.bucket.UploadFromStream(filename, cr,
		options.GridFSUpload().
			SetChunkSizeBytes(ChunkSize).
			SetMetadata(bson.D{{Key: "contentType", Value: "application/pdf"}}))
	if err != nil {
		return models.PDFFile{}, fmt.Errorf("db: gridfs upload: %w", err)
	}
	return models.PDFFile{
		Ref:         oid.Hex(),
		Filename:    filename,
		Length:      cr.n,
		ContentType: "application/pdf",
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (m *Mongo) OpenPDF(_ context.Context, ref string) (io.ReadCloser, models.PDFFile, error) {
	oid, err := parseObjectID(ref)
	if err != nil {
		return nil, models.PDFFile{}, err
	}
	ds, err := m.bucket.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, models.PDFFile{}, ErrNotFound
	} else if err != nil {
		return nil, models.PDFFile{}, fmt.Errorf("db: gridfs open: %w", err)
	}
	f := ds.GetFile()
	return ds, models.PDFFile{
		Ref:         ref,
		Filename:    f.Name,
		Length:      f.Length,
		ContentType: "application/pdf",
		UploadedAt:  f.UploadDate.UTC(),
	}, nil
}

func (m *Mongo) DeletePDF(ctx context.Context, ref string) error {
	oid, err := parseObjectID(ref)
	if err != nil {
		return err
	}
	if err := m.bucket.DeleteContext(ctx, oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("db: gridfs delete: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, readpref.Primary()) }

func (m *Mongo) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }
